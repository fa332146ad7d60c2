package forum

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/alphabot-ai/commons/internal/model"
	"github.com/alphabot-ai/commons/internal/store"
)

var ErrInconsistent = errors.New("score does not match vote ledger")

// Vote applies direction (1 or -1) from the active identity to a comment.
// Repeating the stored direction cancels it back to 0.
func (s *State) Vote(ctx context.Context, commentID, community string, direction int) error {
	return s.run(ctx, "vote", func(t *txn) error {
		acc, err := s.active()
		if err != nil {
			return err
		}
		if direction != 1 && direction != -1 {
			return ErrInvalidDirection
		}
		if _, ok := s.communities[community]; !ok {
			return ErrNoSuchCommunity
		}
		idx := slices.IndexFunc(s.comments[community], func(c model.Comment) bool {
			return c.ID == commentID
		})
		if idx < 0 {
			return ErrNoSuchComment
		}

		prev := s.votes[acc.Username][commentID]
		next := direction
		if prev == direction {
			next = 0
		}

		list := slices.Clone(s.comments[community])
		list[idx].Score += next - prev
		comments := maps.Clone(s.comments)
		comments[community] = list

		votes := maps.Clone(s.votes)
		mine := maps.Clone(s.votes[acc.Username])
		if mine == nil {
			mine = make(map[string]int)
		}
		if next == 0 {
			delete(mine, commentID)
		} else {
			mine[commentID] = next
		}
		if len(mine) == 0 {
			delete(votes, acc.Username)
		} else {
			votes[acc.Username] = mine
		}

		t.stage(store.KeyComments, comments, func() { s.comments = comments })
		t.stage(store.KeyVotes, votes, func() { s.votes = votes })
		return nil
	})
}

// VoteOf returns username's live vote on a comment, 0 when none.
func (s *State) VoteOf(username, commentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.votes[username][commentID]
}

// CheckConsistency replays the vote ledger and compares it with every
// comment's score.
func (s *State) CheckConsistency() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sums := make(map[string]int)
	for _, mine := range s.votes {
		for id, v := range mine {
			sums[id] += v
		}
	}
	var bad []string
	for _, c := range s.allComments(func(model.Comment) bool { return true }) {
		if c.Score != sums[c.ID] {
			bad = append(bad, fmt.Sprintf("%s: score %d, votes %d", c.ID, c.Score, sums[c.ID]))
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return fmt.Errorf("%w: %s", ErrInconsistent, strings.Join(bad, "; "))
}
