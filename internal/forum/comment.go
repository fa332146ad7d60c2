package forum

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/alphabot-ai/commons/internal/model"
	"github.com/alphabot-ai/commons/internal/store"
)

type SortMode string

const (
	SortHot SortMode = "hot"
	SortNew SortMode = "new"
)

// Post appends a comment to a community. The comment carries a snapshot of
// the poster's avatar and mood. Membership is not required.
func (s *State) Post(ctx context.Context, slug, text string) (model.Comment, error) {
	var posted model.Comment
	err := s.run(ctx, "post", func(t *txn) error {
		acc, err := s.active()
		if err != nil {
			return err
		}
		if _, ok := s.communities[slug]; !ok {
			return ErrNoSuchCommunity
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return ErrBlankComment
		}

		posted = model.Comment{
			ID:        s.newID(),
			User:      acc.Username,
			Avatar:    acc.Avatar,
			Mood:      acc.Mood,
			Text:      text,
			Time:      s.now(),
			Community: slug,
		}
		comments := maps.Clone(s.comments)
		comments[slug] = append(slices.Clone(s.comments[slug]), posted)
		t.stage(store.KeyComments, comments, func() { s.comments = comments })
		return nil
	})
	if err != nil {
		return model.Comment{}, err
	}
	return posted, nil
}

// ListSortedBy returns a sorted copy of a community's comments. SortNew
// orders by time, newest first. Any other mode ranks by score, then time.
func (s *State) ListSortedBy(slug string, mode SortMode) ([]model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.communities[slug]; !ok {
		return nil, ErrNoSuchCommunity
	}
	view := slices.Clone(s.comments[slug])
	sortComments(view, mode)
	return view, nil
}

// RecentGlobal returns the newest comments across all communities.
func (s *State) RecentGlobal(limit int) []model.Comment {
	if limit <= 0 {
		return []model.Comment{}
	}
	s.mu.Lock()
	all := s.allComments(func(model.Comment) bool { return true })
	s.mu.Unlock()

	sortComments(all, SortNew)
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// ByUser returns every comment by username, newest first.
func (s *State) ByUser(username string) []model.Comment {
	s.mu.Lock()
	all := s.allComments(func(c model.Comment) bool { return c.User == username })
	s.mu.Unlock()

	sortComments(all, SortNew)
	return all
}

// ClearAll empties every community's comment list and the vote ledger.
// Communities and accounts are kept. Admin only.
func (s *State) ClearAll(ctx context.Context) error {
	return s.run(ctx, "clear_all", func(t *txn) error {
		if _, err := s.admin(); err != nil {
			return err
		}
		empty := true
		for _, list := range s.comments {
			if len(list) > 0 {
				empty = false
				break
			}
		}
		if empty && len(s.votes) == 0 {
			return nil
		}

		comments := make(map[string][]model.Comment, len(s.comments))
		for slug := range s.comments {
			comments[slug] = []model.Comment{}
		}
		votes := make(map[string]map[string]int)
		t.stage(store.KeyComments, comments, func() { s.comments = comments })
		t.stage(store.KeyVotes, votes, func() { s.votes = votes })
		return nil
	})
}

// allComments walks communities in slug order so equal timestamps sort
// deterministically.
func (s *State) allComments(keep func(model.Comment) bool) []model.Comment {
	slugs := make([]string, 0, len(s.comments))
	for slug := range s.comments {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	out := []model.Comment{}
	for _, slug := range slugs {
		for _, c := range s.comments[slug] {
			if keep(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func sortComments(list []model.Comment, mode SortMode) {
	if mode == SortNew {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Time.After(list[j].Time)
		})
		return
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].Time.After(list[j].Time)
	})
}
