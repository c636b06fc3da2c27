package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/lmorel/readout/internal/config"
	"github.com/lmorel/readout/internal/errmsg"
	"github.com/lmorel/readout/internal/logging"
	"github.com/lmorel/readout/internal/playback"
	"github.com/lmorel/readout/internal/queue"
	"github.com/lmorel/readout/internal/service"
)

const usage = `usage: readout [command]

Commands:
  (none)                       resume the queue and print playback status
  add-article <file> [title]   enqueue an article text file for narration
  add-episode <url> [title]    enqueue a podcast episode stream
  list                         print the queue and exit
  clear                        clear the queue and exit
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if err := logging.Init(logging.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
	}); err != nil {
		return errors.Wrap(err, "init logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn := service.New(cfg, articleDir{dir: articlesHome()})
	select {
	case <-conn.Connect():
	case <-ctx.Done():
		return nil
	}
	if err := conn.ConnectErr(); err != nil {
		return errors.Newf("%s", errmsg.Format(errmsg.OpConnect, err))
	}
	defer func() {
		if err := conn.Disconnect(); err != nil {
			zlog.Warn().Err(err).Msg("shutdown incomplete")
		}
	}()

	svc, err := conn.Service()
	if err != nil {
		return err
	}

	args := os.Args[1:]
	if len(args) == 0 {
		return watch(ctx, conn, svc)
	}

	switch args[0] {
	case "add-article":
		return addArticle(svc, args[1:])
	case "add-episode":
		return addEpisode(svc, args[1:])
	case "list":
		printQueue(svc)
		return nil
	case "clear":
		svc.ClearQueue()
		return nil
	case "-h", "--help", "help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Print(usage)
		return errors.Newf("unknown command %q", args[0])
	}
}

// watch resumes playback of the restored queue and prints status lines
// until interrupted.
func watch(ctx context.Context, conn *service.Connection, svc playback.Service) error {
	if svc.QueueIsEmpty() {
		fmt.Println("Queue is empty. Add something with add-article or add-episode.")
		return nil
	}
	printQueue(svc)

	if err := svc.TogglePlayPause(); err != nil {
		return errors.Newf("%s", errmsg.Format(errmsg.OpPlaybackStart, err))
	}

	bridge, err := conn.Bridge()
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case snap := <-bridge.Updates():
			printSnapshot(snap)
		}
	}
}

func addArticle(svc playback.Service, args []string) error {
	if len(args) < 1 {
		return errors.New("add-article needs a text file path")
	}
	src, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		return errors.Wrap(err, "article file")
	}

	title := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if len(args) > 1 {
		title = strings.Join(args[1:], " ")
	}

	item := queue.NewItem(queue.KindArticle, title, "")
	if err := stageArticle(src, item.ID); err != nil {
		return errors.Newf("%s", errmsg.FormatWith(errmsg.OpQueueAdd, title, err))
	}
	svc.Enqueue(item)
	fmt.Printf("Added article %q\n", title)
	return nil
}

func addEpisode(svc playback.Service, args []string) error {
	if len(args) < 1 {
		return errors.New("add-episode needs a stream URL")
	}
	url := args[0]
	title := url
	if len(args) > 1 {
		title = strings.Join(args[1:], " ")
	}

	item := queue.NewItem(queue.KindEpisode, title, "")
	item.Resource = queue.Resource{URL: url}
	svc.Enqueue(item)
	fmt.Printf("Added episode %q\n", title)
	return nil
}

func printQueue(svc playback.Service) {
	items := svc.QueueItems()
	cursor := svc.QueueCurrentIndex()
	for i, it := range items {
		marker := "  "
		if i == cursor {
			marker = "> "
		}
		line := fmt.Sprintf("%s%2d. [%s] %s", marker, i+1, it.Kind, it.Title)
		if it.Duration > 0 {
			line += fmt.Sprintf(" (%s)", formatDuration(it.Duration))
		}
		fmt.Println(line)
	}
}

func printSnapshot(snap playback.Snapshot) {
	line := fmt.Sprintf("\r%-8s", snap.State)
	if snap.ItemID != "" {
		line += " " + snap.Title
		if snap.Author != "" {
			line += " - " + snap.Author
		}
		line += fmt.Sprintf("  %s / %s",
			formatDuration(snap.Position), formatDuration(snap.Duration))
	}
	if snap.Rate != 1.0 {
		line += fmt.Sprintf("  %.2gx", snap.Rate)
	}
	fmt.Printf("%-80s", line)
}

func formatDuration(d time.Duration) string {
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}

// articleDir serves article bodies from plain text files named by item
// ID, the staging area add-article writes into.
type articleDir struct {
	dir string
}

func (a articleDir) ArticleText(_ context.Context, itemID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, itemID+".txt"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func articlesHome() string {
	return filepath.Join(xdg.DataHome, "readout", "articles")
}

// stageArticle copies the source text into the article staging area under
// the item's ID so narration can find it on any later run.
func stageArticle(src, itemID string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	dir := articlesHome()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, itemID+".txt"), data, 0o644)
}
