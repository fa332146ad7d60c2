package forum

import (
	"context"
	"maps"
	"strings"

	"github.com/alphabot-ai/commons/internal/model"
	"github.com/alphabot-ai/commons/internal/store"
)

const DefaultAvatar = "🙂"

// SignUp creates an account and makes it the active identity.
func (s *State) SignUp(ctx context.Context, username, password, avatar string) error {
	return s.run(ctx, "sign_up", func(t *txn) error {
		username = strings.TrimSpace(username)
		if username == "" || strings.TrimSpace(password) == "" {
			return ErrBlankCredentials
		}
		if _, ok := s.accounts[username]; ok {
			return ErrAlreadyExists
		}
		avatar = strings.TrimSpace(avatar)
		if avatar == "" {
			avatar = DefaultAvatar
		}

		accounts := maps.Clone(s.accounts)
		accounts[username] = model.Account{
			Username:  username,
			Password:  password,
			Avatar:    avatar,
			CreatedAt: s.now(),
		}
		t.stage(store.KeyAccounts, accounts, func() { s.accounts = accounts })
		t.stage(store.KeySession, username, func() { s.session = username })
		return nil
	})
}

// LogIn checks the ban record before the password, so a banned user is
// rejected with *BanError whatever password was given.
func (s *State) LogIn(ctx context.Context, username, password string) error {
	return s.run(ctx, "log_in", func(t *txn) error {
		username = strings.TrimSpace(username)
		acc, ok := s.accounts[username]
		if !ok {
			return ErrNoSuchAccount
		}
		if err := s.banned(username); err != nil {
			return err
		}
		if acc.Password != password {
			return ErrWrongPassword
		}
		if s.session == username {
			return nil
		}
		t.stage(store.KeySession, username, func() { s.session = username })
		return nil
	})
}

func (s *State) LogOut(ctx context.Context) error {
	return s.run(ctx, "log_out", func(t *txn) error {
		if s.session == "" {
			return nil
		}
		t.stage(store.KeySession, "", func() { s.session = "" })
		return nil
	})
}

// IsCurrentlyBanned reports whether username has a ban that has not lapsed.
func (s *State) IsCurrentlyBanned(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banned(username) != nil
}

// SetMood updates the active account. Existing comments keep the mood they
// were posted with.
func (s *State) SetMood(ctx context.Context, mood string) error {
	return s.updateActive(ctx, "set_mood", func(acc *model.Account) error {
		acc.Mood = strings.TrimSpace(mood)
		return nil
	})
}

func (s *State) SetAvatar(ctx context.Context, avatar string) error {
	return s.updateActive(ctx, "set_avatar", func(acc *model.Account) error {
		avatar = strings.TrimSpace(avatar)
		if avatar == "" {
			return ErrBlankAvatar
		}
		acc.Avatar = avatar
		return nil
	})
}

func (s *State) SetDisplayName(ctx context.Context, name string) error {
	return s.updateActive(ctx, "set_display_name", func(acc *model.Account) error {
		acc.DisplayName = strings.TrimSpace(name)
		return nil
	})
}

func (s *State) updateActive(ctx context.Context, op string, edit func(*model.Account) error) error {
	return s.run(ctx, op, func(t *txn) error {
		acc, err := s.active()
		if err != nil {
			return err
		}
		next := acc
		if err := edit(&next); err != nil {
			return err
		}
		if next == acc {
			return nil
		}
		accounts := maps.Clone(s.accounts)
		accounts[acc.Username] = next
		t.stage(store.KeyAccounts, accounts, func() { s.accounts = accounts })
		return nil
	})
}

// ActiveAccount returns the logged-in account, if any.
func (s *State) ActiveAccount() (model.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[s.session]
	return acc, ok && s.session != ""
}

func (s *State) Account(username string) (model.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[username]
	return acc, ok
}
