//go:build integration
// +build integration

package test

import (
	"context"
	"sync"
	"testing"
)

// Each issue overwrites the member's verification record, so of many
// concurrently issued refresh tokens exactly one stays valid.
func TestConcurrentRefreshIssueSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, nil)
	id := s.signUp(t, "raceuser01", "password1")

	const workers = 16
	tokens := make([]string, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tok, err := s.engine.IssueRefresh(ctx, id)
			if err != nil {
				t.Errorf("IssueRefresh: %v", err)
				return
			}
			tokens[i] = tok
		}(i)
	}
	close(start)
	wg.Wait()

	valid := 0
	for _, tok := range tokens {
		if sub, err := s.engine.ValidateRefresh(ctx, tok); err == nil {
			if sub != id {
				t.Fatalf("refresh subject %q, want %q", sub, id)
			}
			valid++
		}
	}
	if valid != 1 {
		t.Fatalf("expected exactly one valid refresh token, got %d", valid)
	}
}

func TestConcurrentAuthenticateRequest(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, nil)
	id := s.signUp(t, "race02", "password1")

	access, err := s.engine.IssueAccess(id)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	refresh, err := s.engine.IssueRefresh(ctx, id)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.engine.AuthenticateRequest(ctx, access, refresh)
			if err != nil {
				t.Errorf("AuthenticateRequest: %v", err)
				return
			}
			if res.MemberID != id || res.RenewedAccess != "" {
				t.Errorf("unexpected result %+v", res)
			}
		}()
	}
	wg.Wait()
}
