package rooms

import (
	"context"
	"regexp"
	"testing"
	"time"
)

func TestGenerateCode_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^[ABCDEFGHJKMNPQRSTUVWXYZ23456789]{5}$`)

	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode() error: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Errorf("GenerateCode() = %q, doesn't match expected pattern", code)
		}
	}
}

func TestGenerateCode_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	dupes := 0
	for i := 0; i < 1000; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatal(err)
		}
		if seen[code] {
			dupes++
		}
		seen[code] = true
	}
	// 31^5 combinations, 1000 samples should have essentially no dupes
	if dupes > 2 {
		t.Errorf("too many duplicate codes: %d out of 1000", dupes)
	}
}

func TestFreeCode_NotInStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 20; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.Create(ctx, New(code, time.Second, time.Now())); err != nil {
			t.Fatal(err)
		}
	}

	code, err := FreeCode(ctx, s)
	if err != nil {
		t.Fatalf("FreeCode() error: %v", err)
	}
	if _, err := s.Get(ctx, code); err != ErrNotFound {
		t.Errorf("FreeCode() = %q, which is already taken", code)
	}
}
