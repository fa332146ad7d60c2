package forum

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/alphabot-ai/commons/internal/model"
	"github.com/alphabot-ai/commons/internal/store"
)

const (
	DefaultDescription = "A new community."
	DefaultIcon        = "💬"
)

// Slugify lower-cases and trims name, collapses whitespace runs to '_' and
// drops everything outside [a-z0-9_].
func Slugify(name string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte('_')
			space = false
		}
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CreateCommunity registers a community owned by the active identity and
// returns its slug.
func (s *State) CreateCommunity(ctx context.Context, name, description, icon string) (string, error) {
	var slug string
	err := s.run(ctx, "create_community", func(t *txn) error {
		acc, err := s.active()
		if err != nil {
			return err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return ErrBlankName
		}
		slug = Slugify(name)
		if slug == "" {
			return ErrInvalidSlug
		}
		if _, ok := s.communities[slug]; ok {
			return ErrCommunityExists
		}
		description = strings.TrimSpace(description)
		if description == "" {
			description = DefaultDescription
		}
		icon = strings.TrimSpace(icon)
		if icon == "" {
			icon = DefaultIcon
		}

		communities := maps.Clone(s.communities)
		communities[slug] = model.Community{
			Slug:        slug,
			Name:        name,
			Description: description,
			Icon:        icon,
			Creator:     acc.Username,
			CreatedAt:   s.now(),
			Mods:        []string{acc.Username},
			Members:     []string{acc.Username},
		}
		t.stage(store.KeyCommunities, communities, func() { s.communities = communities })
		return nil
	})
	if err != nil {
		return "", err
	}
	return slug, nil
}

// Join is a no-op for existing members.
func (s *State) Join(ctx context.Context, slug string) error {
	return s.run(ctx, "join", func(t *txn) error {
		acc, err := s.active()
		if err != nil {
			return err
		}
		c, ok := s.communities[slug]
		if !ok {
			return ErrNoSuchCommunity
		}
		if c.HasMember(acc.Username) {
			return nil
		}
		c.Members = append(slices.Clone(c.Members), acc.Username)
		s.stageCommunity(t, c)
		return nil
	})
}

// Leave is a no-op for non-members. The creator cannot leave.
func (s *State) Leave(ctx context.Context, slug string) error {
	return s.run(ctx, "leave", func(t *txn) error {
		acc, err := s.active()
		if err != nil {
			return err
		}
		c, ok := s.communities[slug]
		if !ok {
			return ErrNoSuchCommunity
		}
		if !c.HasMember(acc.Username) {
			return nil
		}
		if c.Creator == acc.Username {
			return ErrCreatorCannotLeave
		}
		c.Members = without(c.Members, acc.Username)
		c.Mods = without(c.Mods, acc.Username)
		s.stageCommunity(t, c)
		return nil
	})
}

// ToggleVerified flips the verified flag. Admin only.
func (s *State) ToggleVerified(ctx context.Context, slug string) error {
	return s.run(ctx, "toggle_verified", func(t *txn) error {
		if _, err := s.admin(); err != nil {
			return err
		}
		c, ok := s.communities[slug]
		if !ok {
			return ErrNoSuchCommunity
		}
		c.Verified = !c.Verified
		s.stageCommunity(t, c)
		return nil
	})
}

func (s *State) stageCommunity(t *txn, c model.Community) {
	communities := maps.Clone(s.communities)
	communities[c.Slug] = c
	t.stage(store.KeyCommunities, communities, func() { s.communities = communities })
}

// Communities lists every community, oldest first.
func (s *State) Communities() []model.Community {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Community, 0, len(s.communities))
	for _, c := range s.communities {
		out = append(out, cloneCommunity(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

func (s *State) Community(slug string) (model.Community, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.communities[slug]
	if !ok {
		return model.Community{}, false
	}
	return cloneCommunity(c), true
}

func cloneCommunity(c model.Community) model.Community {
	c.Mods = slices.Clone(c.Mods)
	c.Members = slices.Clone(c.Members)
	return c
}

func without(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
