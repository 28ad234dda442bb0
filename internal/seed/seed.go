// Package seed fills a development database with fake users, posts and votes.
// Everything goes through the services so the data obeys the same rules as
// real traffic.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harry-2401/reddit/internal/post"
	"github.com/harry-2401/reddit/internal/user"
	"github.com/harry-2401/reddit/internal/vote"

	"github.com/brianvoe/gofakeit/v6"
)

const Password = "123456"

type Options struct {
	Users        int
	PostsPerUser int
	VotesPerUser int
}

type Summary struct {
	Users int
	Posts int
	Votes int
}

type Seeder struct {
	users user.Service
	posts post.Service
	votes vote.Service
	fake  *gofakeit.Faker
}

// New builds a seeder; the same seed produces the same data on an empty
// database.
func New(u user.Service, p post.Service, v vote.Service, seed int64) *Seeder {
	return &Seeder{users: u, posts: p, votes: v, fake: gofakeit.New(seed)}
}

func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary

	userIDs := make([]uint64, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		name := fmt.Sprintf("%s_%d", s.fake.Username(), i)
		u, err := s.users.Register(ctx, user.RegisterReq{
			Username: name,
			Email:    fmt.Sprintf("%s.%d@example.com", s.fake.Word(), i),
			Password: Password,
		})
		if err != nil {
			return sum, fmt.Errorf("register %s: %w", name, err)
		}
		userIDs = append(userIDs, u.ID)
		sum.Users++
	}

	var postIDs []uint64
	for _, uid := range userIDs {
		for j := 0; j < opts.PostsPerUser; j++ {
			p, err := s.posts.Create(ctx, uid, post.CreateReq{
				Title: s.fake.Sentence(6),
				Text:  s.fake.Paragraph(2, 4, 12, "\n\n"),
			})
			if err != nil {
				return sum, fmt.Errorf("create post for user %d: %w", uid, err)
			}
			postIDs = append(postIDs, p.ID)
			sum.Posts++
		}
	}
	if len(postIDs) == 0 {
		return sum, nil
	}

	for _, uid := range userIDs {
		picked := map[uint64]bool{}
		for j := 0; j < opts.VotesPerUser && len(picked) < len(postIDs); j++ {
			pid := postIDs[s.fake.Number(0, len(postIDs)-1)]
			if picked[pid] {
				continue
			}
			picked[pid] = true
			value := vote.Up
			if s.fake.Number(0, 3) == 0 {
				value = vote.Down
			}
			if _, err := s.votes.Cast(ctx, pid, uid, value); err != nil {
				return sum, fmt.Errorf("vote on post %d by user %d: %w", pid, uid, err)
			}
			sum.Votes++
		}
	}

	slog.InfoContext(ctx, "seeded", "users", sum.Users, "posts", sum.Posts, "votes", sum.Votes)
	return sum, nil
}
