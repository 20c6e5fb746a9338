package wallet

import (
	"math/big"
	"sort"

	"liquiditySim/internal/simerr"
)

// Delta is a signed balance change; negative amounts are debits.
type Delta struct {
	Token  string
	Amount *big.Int
}

// Ledger holds per-agent token balances in raw units. Accounts are created
// by Open or lazily on first credit.
type Ledger struct {
	balances map[string]map[string]*big.Int
	order    []string
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]map[string]*big.Int)}
}

// Open registers an agent with initial balances. Opening an existing agent
// adds to its balances.
func (l *Ledger) Open(agent string, initial map[string]*big.Int) error {
	if agent == "" {
		return simerr.Validation("open wallet", "agent name is required")
	}
	tokens := make([]string, 0, len(initial))
	for token, amount := range initial {
		if amount != nil && amount.Sign() < 0 {
			return simerr.Validation("open wallet", "agent %s: negative initial %s balance %s", agent, token, amount)
		}
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	acct := l.account(agent)
	for _, token := range tokens {
		if initial[token] == nil {
			continue
		}
		bal := l.balance(acct, token)
		bal.Add(bal, initial[token])
	}
	return nil
}

func (l *Ledger) account(agent string) map[string]*big.Int {
	acct, ok := l.balances[agent]
	if !ok {
		acct = make(map[string]*big.Int)
		l.balances[agent] = acct
		l.order = append(l.order, agent)
	}
	return acct
}

func (l *Ledger) balance(acct map[string]*big.Int, token string) *big.Int {
	bal, ok := acct[token]
	if !ok {
		bal = new(big.Int)
		acct[token] = bal
	}
	return bal
}

// Has reports whether the agent holds an account.
func (l *Ledger) Has(agent string) bool {
	_, ok := l.balances[agent]
	return ok
}

// Agents lists agents in registration order.
func (l *Ledger) Agents() []string {
	return append([]string(nil), l.order...)
}

// Balance returns a copy of the agent's balance of token; zero if absent.
func (l *Ledger) Balance(agent, token string) *big.Int {
	acct, ok := l.balances[agent]
	if !ok {
		return new(big.Int)
	}
	bal, ok := acct[token]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

// Balances returns a copy of all balances of an agent.
func (l *Ledger) Balances(agent string) map[string]*big.Int {
	out := make(map[string]*big.Int)
	for token, bal := range l.balances[agent] {
		out[token] = new(big.Int).Set(bal)
	}
	return out
}

// Tokens returns the sorted token symbols an agent has ever held.
func (l *Ledger) Tokens(agent string) []string {
	tokens := make([]string, 0, len(l.balances[agent]))
	for token := range l.balances[agent] {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

func (l *Ledger) Credit(agent, token string, amount *big.Int) error {
	if amount.Sign() < 0 {
		return simerr.Validation("credit", "agent %s: negative credit %s %s", agent, amount, token)
	}
	return l.Apply(agent, []Delta{{Token: token, Amount: amount}})
}

func (l *Ledger) Debit(agent, token string, amount *big.Int) error {
	if amount.Sign() < 0 {
		return simerr.Validation("debit", "agent %s: negative debit %s %s", agent, amount, token)
	}
	return l.Apply(agent, []Delta{{Token: token, Amount: new(big.Int).Neg(amount)}})
}

// Apply applies a batch of deltas atomically: either every delta lands or,
// if any balance would go negative, none does. Deltas on the same token are
// netted before checking.
func (l *Ledger) Apply(agent string, deltas []Delta) error {
	net := make(map[string]*big.Int)
	var tokens []string
	for _, d := range deltas {
		if d.Amount == nil || d.Amount.Sign() == 0 {
			continue
		}
		if d.Token == "" {
			return simerr.Newf(simerr.ClassValidation, "apply", "%w: empty token symbol", simerr.ErrUnknownToken)
		}
		if _, ok := net[d.Token]; !ok {
			net[d.Token] = new(big.Int)
			tokens = append(tokens, d.Token)
		}
		net[d.Token].Add(net[d.Token], d.Amount)
	}

	for _, token := range tokens {
		after := new(big.Int).Add(l.Balance(agent, token), net[token])
		if after.Sign() < 0 {
			return simerr.Newf(simerr.ClassInsufficientBalance, "apply", "%w: agent %s needs %s more %s",
				simerr.ErrInsufficientBalance, agent, new(big.Int).Neg(after), token)
		}
	}

	acct := l.account(agent)
	for _, token := range tokens {
		bal := l.balance(acct, token)
		bal.Add(bal, net[token])
	}
	return nil
}
