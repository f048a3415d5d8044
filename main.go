package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/cadence/internal/config"
	"github.com/llehouerou/cadence/internal/library"
	"github.com/llehouerou/cadence/internal/playlists"
	"github.com/llehouerou/cadence/internal/playqueue"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openLibrary() (*library.Library, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	lib, err := library.Open(cfg.LibraryDir, library.Options{
		Defaults: library.Defaults{
			AlbumName:  cfg.DefaultAlbumName,
			ArtistName: cfg.DefaultArtistName,
		},
		Logger: slog.Default(),
	})
	if err != nil {
		return nil, nil, err
	}
	return lib, cfg, nil
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cadence",
		Short:         "cadence is a local music library engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(scanCmd(), watchCmd(), tracksCmd(), categoriesCmd(), playlistCmd(), queueCmd(), vacuumCmd())
	return root
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [root...]",
		Short: "Scan roots into the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, cfg, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			roots := args
			if len(roots) == 0 {
				roots = cfg.Roots
			}
			if len(roots) == 0 {
				return fmt.Errorf("no roots configured; pass them as arguments or set roots in config.toml")
			}

			ix := lib.NewIndexer()
			ix.ProgressBatch = cfg.ProgressBatch

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				ix.Interrupt()
			}()

			start := time.Now()
			progress := make(chan library.Progress)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for p := range progress {
					if p.Done {
						fmt.Printf("scan %s: %s files, %s tracks in %s\n",
							p.Result,
							humanize.Comma(int64(p.FilesIndexed)),
							humanize.Comma(int64(p.TracksCommitted)),
							time.Since(start).Round(time.Millisecond))
					} else {
						fmt.Printf("  %s files, %s tracks\n",
							humanize.Comma(int64(p.FilesIndexed)),
							humanize.Comma(int64(p.TracksCommitted)))
					}
				}
			}()

			result, err := ix.Scan(roots, progress)
			<-done
			if err != nil {
				return err
			}
			if result == library.ScanRollback {
				return fmt.Errorf("scan rolled back; see log for details")
			}
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [root...]",
		Short: "Watch roots and rescan on changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, cfg, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			roots := args
			if len(roots) == 0 {
				roots = cfg.Roots
			}
			if len(roots) == 0 {
				return fmt.Errorf("no roots configured")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ix := lib.NewIndexer()
			ix.ProgressBatch = cfg.ProgressBatch
			err = ix.Watch(ctx, roots, func(p library.Progress) {
				if p.Done {
					fmt.Printf("rescan %s: %d files, %d tracks\n", p.Result, p.FilesIndexed, p.TracksCommitted)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func tracksCmd() *cobra.Command {
	var filter string
	var regex bool
	var category string
	var categoryID int64

	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "List tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			q := library.TrackQuery{Filter: filter}
			if regex {
				q.Match = library.MatchRegex
			}
			if category != "" {
				q.Predicates = []library.Predicate{{Category: library.Category(category), ID: categoryID}}
			}

			ids, err := lib.TrackIDs(q)
			if err != nil {
				return err
			}
			tracks, err := lib.TracksByIDs(ids)
			if err != nil {
				return err
			}
			for _, id := range ids {
				t := tracks[id]
				if t == nil {
					continue
				}
				fmt.Printf("%6d  %s - %s (%s) [%s]\n", t.ID, t.Artist, t.Title, t.Album,
					(time.Duration(t.Duration) * time.Second).String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "free-text filter")
	cmd.Flags().BoolVar(&regex, "regex", false, "treat the filter as a regular expression")
	cmd.Flags().StringVar(&category, "category", "", "category to filter by (artist, album, genre, album_artist, playlists)")
	cmd.Flags().Int64Var(&categoryID, "id", 0, "category member id")
	return cmd
}

func categoriesCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "categories <artist|album|genre|album_artist|playlists>",
		Short: "List a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			items, err := lib.ListCategory(library.CategoryQuery{
				Category: library.Category(args[0]),
				Filter:   filter,
			})
			if err != nil {
				return err
			}
			for _, item := range items {
				fmt.Printf("%6d  %s\n", item.ID, item.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "substring filter on names")
	return cmd
}

func playlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Manage playlists",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name> [track-id...]",
		Short: "Create a playlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			id, err := playlists.New(lib.Store()).Create(args[0], ids)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}, &cobra.Command{
		Use:   "list",
		Short: "List playlists",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			pls, err := playlists.New(lib.Store()).List()
			if err != nil {
				return err
			}
			for _, pl := range pls {
				fmt.Printf("%6d  %s\n", pl.ID, pl.Name)
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return playlists.New(lib.Store()).Rename(id, args[1])
		},
	}, &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return playlists.New(lib.Store()).Delete(id)
		},
	}, &cobra.Command{
		Use:   "append <id> <track-id...>",
		Short: "Append tracks to a playlist",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			return playlists.New(lib.Store()).Append(id, ids)
		},
	}, &cobra.Command{
		Use:   "show <id>",
		Short: "Show a playlist's tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			ids, err := playlists.New(lib.Store()).TrackIDs(id)
			if err != nil {
				return err
			}
			tracks, err := lib.TracksByIDs(ids)
			if err != nil {
				return err
			}
			for i, trackID := range ids {
				if t := tracks[trackID]; t != nil {
					fmt.Printf("%4d  %s - %s\n", i, t.Artist, t.Title)
				}
			}
			return nil
		},
	})
	return cmd
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the persisted play queue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the persisted play queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			snap, err := playqueue.New(lib.Store()).Load()
			if err != nil {
				return err
			}
			tracks, err := lib.TracksByIDs(snap.TrackIDs)
			if err != nil {
				return err
			}
			for i, id := range snap.TrackIDs {
				marker := "  "
				if i == snap.Index {
					marker = "> "
				}
				if t := tracks[id]; t != nil {
					fmt.Printf("%s%4d  %s - %s\n", marker, i, t.Artist, t.Title)
				}
			}
			if snap.Index >= 0 {
				fmt.Printf("position %.1fs into entry %d\n", snap.Offset, snap.Index)
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Clear the persisted play queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			return playqueue.New(lib.Store()).Clear()
		},
	})
	return cmd
}

func vacuumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Remove unreferenced vocabulary rows and thumbnails",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			return lib.VacuumVocabulary()
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid track id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
