package domain

import "testing"

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		in      string
		want    Outcome
		wantErr bool
	}{
		{"yes", Yes, false},
		{"YES", Yes, false},
		{"1", Yes, false},
		{"no", No, false},
		{"2", No, false},
		{"invalid", Invalid, false},
		{"0", Unresolved, false},
		{"maybe", Unresolved, true},
	}

	for _, tt := range tests {
		got, err := ParseOutcome(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutcome(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOutcome(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOutcomePredicates(t *testing.T) {
	if !Yes.IsSide() || !No.IsSide() || Invalid.IsSide() || Unresolved.IsSide() {
		t.Error("IsSide wrong")
	}
	if Unresolved.IsTerminal() || !Invalid.IsTerminal() {
		t.Error("IsTerminal wrong")
	}
	if Yes.Opposite() != No || No.Opposite() != Yes {
		t.Error("Opposite wrong")
	}
}

func TestOutcomeText(t *testing.T) {
	var o Outcome
	if err := o.UnmarshalText([]byte("no")); err != nil || o != No {
		t.Fatalf("UnmarshalText = %v, %v", o, err)
	}
	b, _ := Invalid.MarshalText()
	if string(b) != "invalid" {
		t.Errorf("MarshalText = %s", b)
	}
}
