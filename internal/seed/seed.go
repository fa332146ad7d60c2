// Package seed fills a running Commons server with demo data through the
// HTTP API.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/alphabot-ai/commons/internal/client"
	"github.com/alphabot-ai/commons/internal/forum"
)

var members = []struct {
	name   string
	avatar string
	mood   string
}{
	{"ash", "🦊", "curious"},
	{"bo", "🐢", "slow and steady"},
	{"cy", "🦉", ""},
	{"dee", "🐙", "juggling"},
	{"eli", "🐝", "busy"},
}

var communities = []struct {
	name        string
	description string
	icon        string
}{
	{"Lava Lamps", "Warm, slow, hypnotic.", "🌋"},
	{"Moss", "Small green things on rocks.", "🌿"},
	{"Night Sky", "", "🌌"},
}

var comments = []string{
	"First time posting here, hello everyone.",
	"Has anyone tried the blue ones? They take forever to warm up.",
	"This is the calmest corner of the internet.",
	"Counterpoint: it is just wax.",
	"Found a patch of cushion moss on my walk today.",
	"Long exposure shots from last night came out great.",
	"What do you all use for cleaning the glass?",
	"Strongly agree with the above.",
	"Not sure I follow, can you share a photo?",
	"Bookmarking this thread.",
}

var reasons = []string{"spam", "off-topic", "rude", ""}

type Summary struct {
	Members     int
	Communities int
	Comments    int
	Votes       int
	Reports     int
}

func password(name string) string {
	return name + "-seed"
}

// Run creates the demo members, communities, comments, votes and reports.
// Members that already exist are logged in instead. The session is logged
// out when Run returns.
func Run(ctx context.Context, c *client.Client, rng *rand.Rand, logger *slog.Logger) (Summary, error) {
	var sum Summary
	defer func() { _ = c.LogOut(ctx) }()

	for _, m := range members {
		_, err := c.SignUp(ctx, m.name, password(m.name), m.avatar)
		if isCode(err, "conflict") {
			err = as(ctx, c, m.name)
		} else if err == nil {
			sum.Members++
		}
		if err != nil {
			return sum, fmt.Errorf("sign up %s: %w", m.name, err)
		}
		if m.mood != "" {
			if err := c.SetMood(ctx, m.mood); err != nil {
				return sum, fmt.Errorf("mood %s: %w", m.name, err)
			}
		}
		logger.Info("seeded member", "user", m.name)
	}

	var slugs []string
	for _, cm := range communities {
		creator := members[rng.Intn(len(members))].name
		if err := as(ctx, c, creator); err != nil {
			return sum, err
		}
		created, err := c.CreateCommunity(ctx, cm.name, cm.description, cm.icon)
		switch {
		case isCode(err, "conflict"):
			slugs = append(slugs, forum.Slugify(cm.name))
		case err != nil:
			return sum, fmt.Errorf("create %s: %w", cm.name, err)
		default:
			sum.Communities++
			slugs = append(slugs, created.Slug)
			logger.Info("seeded community", "slug", created.Slug, "creator", creator)
		}
	}

	type posted struct {
		slug string
		id   string
	}
	var all []posted
	for _, slug := range slugs {
		n := rng.Intn(3) + 2
		for i := 0; i < n; i++ {
			author := members[rng.Intn(len(members))].name
			if err := as(ctx, c, author); err != nil {
				return sum, err
			}
			if err := c.Join(ctx, slug); err != nil {
				return sum, fmt.Errorf("join %s: %w", slug, err)
			}
			cm, err := c.Post(ctx, slug, comments[rng.Intn(len(comments))])
			if err != nil {
				return sum, fmt.Errorf("post to %s: %w", slug, err)
			}
			all = append(all, posted{slug: slug, id: cm.ID})
			sum.Comments++
		}
	}

	for _, m := range members {
		if err := as(ctx, c, m.name); err != nil {
			return sum, err
		}
		for _, p := range all {
			if rng.Float32() < 0.5 {
				continue
			}
			dir := 1
			if rng.Float32() < 0.2 {
				dir = -1
			}
			if _, err := c.Vote(ctx, p.slug, p.id, dir); err != nil {
				return sum, fmt.Errorf("vote: %w", err)
			}
			sum.Votes++
		}
	}

	for i := 0; i < 2; i++ {
		reporter := members[i].name
		target := members[len(members)-1-i].name
		if err := as(ctx, c, reporter); err != nil {
			return sum, err
		}
		if _, err := c.Report(ctx, target, reasons[rng.Intn(len(reasons))]); err != nil {
			return sum, fmt.Errorf("report %s: %w", target, err)
		}
		sum.Reports++
	}
	latest, err := c.Recent(ctx, 3)
	if err != nil {
		return sum, fmt.Errorf("recent: %w", err)
	}
	for _, cm := range latest {
		logger.Debug("recent comment", "id", cm.ID, "community", cm.Community, "user", cm.User)
	}
	logger.Info("seed complete",
		"members", sum.Members, "communities", sum.Communities,
		"comments", sum.Comments, "votes", sum.Votes, "reports", sum.Reports)
	return sum, nil
}

func as(ctx context.Context, c *client.Client, name string) error {
	if _, err := c.LogIn(ctx, name, password(name)); err != nil {
		return fmt.Errorf("log in %s: %w", name, err)
	}
	return nil
}

func isCode(err error, code string) bool {
	var apiErr *client.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
