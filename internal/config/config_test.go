package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

const runYAML = `
start: 100
end: 110
numeraire: USDC
gas-fee: "1000"
gas-token: ETH
pools:
  - id: eth-usdc
    token0: ETH
    token1: USDC
    decimals0: 18
    decimals1: 6
    fee-pips: 3000
    initial-price: "2000"
  - id: tick-pool
    token0: A
    token1: B
    fee-pips: 500
    initial-tick: -120
agents:
  - name: alice
    wallet:
      - token: ETH
        amount: "10000000000000000000"
sources:
  - kind: scheduled
    id: alice-lp
    agent: alice
    pool: eth-usdc
    params:
      actions:
        - block: 100
          kind: mint
spot:
  prices:
    - pair: ETH/USDC
      price: "2000"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunConfig(t *testing.T) {
	path := writeConfig(t, runYAML)
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.Uint64("end", 0, "")
	if err := flags.Parse([]string{"--end=105"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Start != 100 || cfg.End != 105 || cfg.Step != 1 {
		t.Fatalf("unexpected range %d..%d step %d", cfg.Start, cfg.End, cfg.Step)
	}
	if !cfg.CheckInvariants {
		t.Fatalf("check-invariants should default on")
	}
	if len(cfg.Pools) != 2 || cfg.Pools[0].Decimals1 != 6 || cfg.Pools[0].InitialPrice != "2000" {
		t.Fatalf("unexpected pools %+v", cfg.Pools)
	}
	if cfg.Pools[1].InitialTick == nil || *cfg.Pools[1].InitialTick != -120 {
		t.Fatalf("initial tick not decoded: %+v", cfg.Pools[1])
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].Wallet[0].Token != "ETH" {
		t.Fatalf("unexpected agents %+v", cfg.Agents)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Kind != "scheduled" || cfg.Sources[0].Params["actions"] == nil {
		t.Fatalf("unexpected sources %+v", cfg.Sources)
	}
	if len(cfg.Spot.Prices) != 1 || cfg.Spot.Prices[0].Pair != "ETH/USDC" {
		t.Fatalf("unexpected spot %+v", cfg.Spot)
	}
}

func TestLoadRejectsBadRange(t *testing.T) {
	path := writeConfig(t, "start: 10\nend: 5\npools:\n  - id: p\n")
	if _, err := Load(path, nil); err == nil {
		t.Fatalf("expected error for end before start")
	}
	path = writeConfig(t, "start: 1\nend: 5\n")
	if _, err := Load(path, nil); err == nil {
		t.Fatalf("expected error without pools")
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, runYAML)
	t.Setenv("SIMULATOR_NUMERAIRE", "ETH")
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Numeraire != "ETH" {
		t.Fatalf("expected env override, got %q", cfg.Numeraire)
	}
}

func TestLoadFetch(t *testing.T) {
	path := writeConfig(t, "rpc: http://localhost:8545\npool: \"0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640\"\nfrom: 1\nto: 2\nkinds: swap,mint\n")
	cfg, err := LoadFetch(path, nil)
	if err != nil {
		t.Fatalf("load fetch: %v", err)
	}
	if cfg.PoolID != cfg.Pool || cfg.BatchSize != 2000 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.Kinds) != 2 || cfg.Kinds[1] != "mint" {
		t.Fatalf("unexpected kinds %v", cfg.Kinds)
	}

	path = writeConfig(t, "pool: x\n")
	if _, err := LoadFetch(path, nil); err == nil {
		t.Fatalf("expected error without rpc")
	}
}

func TestSplitAndClean(t *testing.T) {
	got := splitAndClean(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected %v", got)
	}
}
