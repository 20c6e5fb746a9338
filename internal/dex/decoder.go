package dex

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquiditySim/internal/model"
)

// Decoder turns raw pool logs into model.PoolEvent values.
type Decoder struct {
	abi    abi.ABI
	byID   map[common.Hash]model.PoolEventName
	events map[model.PoolEventName]abi.Event
}

// NewDecoder builds a decoder for the given event names; none means all four.
// Names are matched case-insensitively.
func NewDecoder(names ...string) (*Decoder, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	if len(names) == 0 {
		names = []string{"swap", "mint", "burn", "collect"}
	}

	d := &Decoder{
		abi:    parsed,
		byID:   make(map[common.Hash]model.PoolEventName),
		events: make(map[model.PoolEventName]abi.Event),
	}
	for _, raw := range names {
		name, ok := eventName(raw)
		if !ok {
			return nil, fmt.Errorf("unsupported event %q", raw)
		}
		ev := parsed.Events[string(name)]
		d.byID[ev.ID] = name
		d.events[name] = ev
	}
	return d, nil
}

func eventName(raw string) (model.PoolEventName, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "swap":
		return model.EventSwap, true
	case "mint":
		return model.EventMint, true
	case "burn":
		return model.EventBurn, true
	case "collect":
		return model.EventCollect, true
	default:
		return "", false
	}
}

// Topics returns the topic0 filter for the configured events, sorted.
func (d *Decoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.byID))
	for id := range d.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}

// CanDecode reports whether topic0 names a configured event.
func (d *Decoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.byID[topic0]
	return ok
}

func (d *Decoder) Decode(log types.Log) (model.PoolEvent, error) {
	if len(log.Topics) == 0 {
		return model.PoolEvent{}, fmt.Errorf("log has no topics")
	}
	name, ok := d.byID[log.Topics[0]]
	if !ok {
		return model.PoolEvent{}, fmt.Errorf("unsupported topic0 %s", log.Topics[0].Hex())
	}
	ev := d.events[name]

	indexed := indexedArguments(ev.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return model.PoolEvent{}, fmt.Errorf("%s: expected %d topics, got %d", name, len(indexed)+1, len(log.Topics))
	}
	fields := make(map[string]interface{}, len(ev.Inputs))
	if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
		return model.PoolEvent{}, fmt.Errorf("%s: parse topics: %w", name, err)
	}
	if err := ev.Inputs.NonIndexed().UnpackIntoMap(fields, log.Data); err != nil {
		return model.PoolEvent{}, fmt.Errorf("%s: unpack data: %w", name, err)
	}

	out := model.PoolEvent{
		Name:        name,
		Pool:        log.Address.Hex(),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
	}
	f := fieldReader{event: name, values: fields}
	switch name {
	case model.EventSwap:
		out.Sender = f.address("sender")
		out.Recipient = f.address("recipient")
		out.Amount0 = f.bigInt("amount0")
		out.Amount1 = f.bigInt("amount1")
		out.SqrtPriceX96 = f.bigInt("sqrtPriceX96")
		out.Liquidity = f.bigInt("liquidity")
		out.Tick = f.int24("tick")
	case model.EventMint:
		out.Sender = f.address("sender")
		out.Owner = f.address("owner")
		out.TickLower = f.int24("tickLower")
		out.TickUpper = f.int24("tickUpper")
		out.Amount = f.bigInt("amount")
		out.Amount0 = f.bigInt("amount0")
		out.Amount1 = f.bigInt("amount1")
	case model.EventBurn:
		out.Owner = f.address("owner")
		out.TickLower = f.int24("tickLower")
		out.TickUpper = f.int24("tickUpper")
		out.Amount = f.bigInt("amount")
		out.Amount0 = f.bigInt("amount0")
		out.Amount1 = f.bigInt("amount1")
	case model.EventCollect:
		out.Owner = f.address("owner")
		out.Recipient = f.address("recipient")
		out.TickLower = f.int24("tickLower")
		out.TickUpper = f.int24("tickUpper")
		out.Amount0 = f.bigInt("amount0")
		out.Amount1 = f.bigInt("amount1")
	}
	if f.err != nil {
		return model.PoolEvent{}, f.err
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

// fieldReader converts unpacked ABI values, keeping the first error.
type fieldReader struct {
	event  model.PoolEventName
	values map[string]interface{}
	err    error
}

func (f *fieldReader) fail(field string, err error) {
	if f.err == nil {
		f.err = fmt.Errorf("%s.%s: %w", f.event, field, err)
	}
}

func (f *fieldReader) address(field string) string {
	v, err := asAddress(f.values[field])
	if err != nil {
		f.fail(field, err)
		return ""
	}
	return v.Hex()
}

func (f *fieldReader) bigInt(field string) *big.Int {
	v, err := asBigInt(f.values[field])
	if err != nil {
		f.fail(field, err)
		return nil
	}
	return v
}

func (f *fieldReader) int24(field string) int32 {
	v, err := asBigInt(f.values[field])
	if err != nil {
		f.fail(field, err)
		return 0
	}
	t, err := int24FromBig(v)
	if err != nil {
		f.fail(field, err)
	}
	return t
}
