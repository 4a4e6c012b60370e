package symbol

import "testing"

func TestCleanStripsNonAlphanumericAndLowercases(t *testing.T) {
	got := Clean("WETH ")
	if got != "weth" {
		t.Fatalf("Clean(%q) = %q, want %q", "WETH ", got, "weth")
	}
}

func TestCleanSwapsKnownGlyphs(t *testing.T) {
	got := Clean("Ξ")
	if got != "eth" {
		t.Fatalf("Clean(glyph) = %q, want %q", got, "eth")
	}
}

func TestNormalizeCollapsesWrappers(t *testing.T) {
	cases := map[string]string{
		"WETH": "eth",
		"wbtc": "btc",
		"USDC": "usdc",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKlineTableName(t *testing.T) {
	got := KlineTableName("Arbitrum", "Uniswap", "ARB", "USDC")
	want := "arbitrum_uniswap_arbusdc_1m_klines"
	if got != want {
		t.Fatalf("KlineTableName = %q, want %q", got, want)
	}
}

func TestResolvePairOrientation(t *testing.T) {
	baseIsToken1, err := ResolvePairOrientation("ARB/USDC", "USDC", "ARB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !baseIsToken1 {
		t.Fatalf("expected baseIsToken1=true when token1 is the desired base")
	}

	_, err = ResolvePairOrientation("ARB/USDC", "WETH", "DAI")
	if err == nil {
		t.Fatalf("expected error when pair base is not among pool tokens")
	}
}
