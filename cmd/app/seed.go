package main

import (
	"time"

	"github.com/harry-2401/reddit/internal/seed"

	"github.com/spf13/cobra"
)

var seedOpts struct {
	users, posts, votes int
	seed                int64
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with fake users, posts and votes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		_, err = seed.New(a.users, a.posts, a.votes, seedOpts.seed).Run(cmd.Context(), seed.Options{
			Users:        seedOpts.users,
			PostsPerUser: seedOpts.posts,
			VotesPerUser: seedOpts.votes,
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	f := seedCmd.Flags()
	f.IntVar(&seedOpts.users, "users", 20, "users to create")
	f.IntVar(&seedOpts.posts, "posts", 5, "posts per user")
	f.IntVar(&seedOpts.votes, "votes", 30, "votes per user")
	f.Int64Var(&seedOpts.seed, "seed", time.Now().UnixNano(), "random seed")
}
