package main

import (
	"anonchat/backend/internal/api/handler"
	"anonchat/backend/internal/app"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/logging"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/storage"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

const usage = `Usage: admin <command> [args]

Commands:
  ban <pseudonym>      ban a participant and close their room
  unban <pseudonym>    lift a ban
  stats                dashboard counters
  rooms [--open]       list rooms, newest first
  room <id>            show a room transcript
  reports              list abuse reports
  serve                run the admin HTTP console`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	if err := run(ctx, a, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Render(err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, command string, args []string, out io.Writer) error {
	switch command {
	case "ban":
		if len(args) != 1 {
			return errors.New("Usage: admin ban <pseudonym>")
		}
		res, err := a.Moderation.Ban(ctx, args[0])
		if err != nil {
			return fmt.Errorf("ban: %w", err)
		}
		fmt.Fprintln(out, color.New(color.FgGreen).Render("Participant "+args[0]+" has been banned."))
		if res.ClosedRoom != nil {
			fmt.Fprintf(out, "Closed room %s\n", res.ClosedRoom.ID)
		}

	case "unban":
		if len(args) != 1 {
			return errors.New("Usage: admin unban <pseudonym>")
		}
		if _, err := a.Moderation.Unban(ctx, args[0]); err != nil {
			return fmt.Errorf("unban: %w", err)
		}
		fmt.Fprintln(out, color.New(color.FgGreen).Render("Participant "+args[0]+" has been unbanned."))

	case "stats":
		st, err := a.Moderation.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		printStats(out, st)

	case "rooms":
		fs := flag.NewFlagSet("rooms", flag.ContinueOnError)
		fs.SetOutput(out)
		openOnly := fs.Bool("open", false, "only open rooms")
		if err := fs.Parse(args); err != nil {
			return err
		}
		rooms, err := a.Moderation.ListRooms(ctx, *openOnly)
		if err != nil {
			return fmt.Errorf("rooms: %w", err)
		}
		printRooms(out, rooms)

	case "room":
		if len(args) != 1 {
			return errors.New("Usage: admin room <id>")
		}
		view, err := a.Moderation.RoomWithMessages(ctx, args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("room %s not found", args[0])
		}
		if err != nil {
			return fmt.Errorf("room: %w", err)
		}
		printRooms(out, []models.Room{*view.Room})
		printMessages(out, view.Messages)

	case "reports":
		reports, err := a.Moderation.ListReports(ctx)
		if err != nil {
			return fmt.Errorf("reports: %w", err)
		}
		printReports(out, reports)

	case "serve":
		return serve(ctx, a)

	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
	return nil
}

func serve(ctx context.Context, a *app.App) error {
	gin.SetMode(gin.ReleaseMode)
	h := handler.NewHandler(a.Hub, a.Registry, a.Moderation, a.Config.JWTSecret)
	srv := &http.Server{
		Addr:              a.Config.AdminAddr,
		Handler:           handler.NewAdminRouter(h, gin.Accounts{a.Config.AdminUsername: a.Config.AdminPassword}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("admin console listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newTable(out io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func printStats(out io.Writer, st storage.Stats) {
	table := newTable(out, []string{"Metric", "Value"})
	table.Append([]string{"participants", strconv.FormatInt(st.TotalParticipants, 10)})
	table.Append([]string{"open rooms", strconv.FormatInt(st.OpenRooms, 10)})
	table.Append([]string{"messages", strconv.FormatInt(st.TotalMessages, 10)})
	table.Append([]string{"reports", strconv.FormatInt(st.TotalReports, 10)})
	table.Render()
}

func printRooms(out io.Writer, rooms []models.Room) {
	table := newTable(out, []string{"ID", "Created", "Closed", "Members"})
	for _, r := range rooms {
		closed := "open"
		if r.ClosedAt != nil {
			closed = r.ClosedAt.Format(time.RFC3339)
		}
		members := ""
		for i, m := range r.Members {
			if i > 0 {
				members += ", "
			}
			members += shortPseudonym(m)
		}
		table.Append([]string{r.ID, r.CreatedAt.Format(time.RFC3339), closed, members})
	}
	table.Render()
}

func printMessages(out io.Writer, messages []models.Message) {
	table := newTable(out, []string{"Time", "Sender", "Text"})
	for _, m := range messages {
		table.Append([]string{m.CreatedAt.Format(time.RFC3339), shortPseudonym(m.SenderPseudonym), m.Text})
	}
	table.Render()
}

func printReports(out io.Writer, reports []models.Report) {
	table := newTable(out, []string{"ID", "Created", "Room", "Reporter", "Reported", "Reason"})
	for _, r := range reports {
		table.Append([]string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.CreatedAt.Format(time.RFC3339),
			r.RoomID,
			shortPseudonym(r.ReporterPseudonym),
			r.ReportedPseudonym,
			r.Reason,
		})
	}
	table.Render()
}

// shortPseudonym keeps tables readable; the reported column stays full so it
// can be pasted into "admin ban".
func shortPseudonym(p string) string {
	if len(p) > 12 {
		return p[:12]
	}
	return p
}
