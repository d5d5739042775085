// ABOUTME: Operator CLI for inspecting the chatd database
// ABOUTME: Lists users, conversations, and message history

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/config"
	"github.com/Alexxxx0910/work-flow-connect-62/internal/store"
)

// getConfigPath mirrors the chatd config resolution so both binaries read
// the same database.
func getConfigPath() string {
	if envPath := os.Getenv("CHATD_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "chatd.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "chatd", "chatd.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: chatctl <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  users                         List all users")
		fmt.Println("  conversations --user ID       List a user's conversations")
		fmt.Println("  messages --chat ID [--limit N]  Show recent messages")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "users":
		err = runUsers(ctx)
	case "conversations":
		err = runConversations(ctx)
	case "messages":
		err = runMessages(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openStore() (*store.SQLiteStore, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

// parseFlag extracts a single "--flag value" or "--flag=value" argument.
func parseFlag(args []string, long, short string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == long || arg == short:
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, long+"="):
			return strings.TrimPrefix(arg, long+"=")
		}
	}
	return ""
}

func runUsers(ctx context.Context) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tONLINE\tLAST SEEN")
	for _, u := range users {
		online := color.RedString("no")
		if u.Online {
			online = color.GreenString("yes")
		}
		lastSeen := "-"
		if !u.LastSeenAt.IsZero() {
			lastSeen = u.LastSeenAt.Local().Format(time.RFC822)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.DisplayName, online, lastSeen)
	}
	return w.Flush()
}

func runConversations(ctx context.Context) error {
	userID := parseFlag(os.Args[2:], "--user", "-u")
	if userID == "" {
		return fmt.Errorf("--user flag is required")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	convs, err := st.ListConversationsByMember(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tMEMBERS\tLAST ACTIVITY")
	for _, c := range convs {
		members, err := st.ListMembers(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("listing members of %s: %w", c.ID, err)
		}

		kind := "private"
		if c.IsGroup {
			kind = "group"
		}
		name := c.DisplayName
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			c.ID, name, kind, len(members), c.LastActivityAt.Local().Format(time.RFC822))
	}
	return w.Flush()
}

func runMessages(ctx context.Context) error {
	args := os.Args[2:]
	chatID := parseFlag(args, "--chat", "-c")
	if chatID == "" {
		return fmt.Errorf("--chat flag is required")
	}

	limit := 50
	if raw := parseFlag(args, "--limit", "-l"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid --limit: %s", raw)
		}
		limit = n
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.GetConversation(ctx, chatID); err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}

	msgs, err := st.ListRecentMessages(ctx, chatID, limit)
	if err != nil {
		return fmt.Errorf("listing messages: %w", err)
	}

	gray := color.New(color.FgHiBlack)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	for _, m := range msgs {
		gray.Printf("%s ", m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if m.System() {
			yellow.Printf("* %s\n", m.Content)
			continue
		}

		author := m.AuthorID
		if u, err := st.GetUser(ctx, m.AuthorID); err == nil {
			author = u.DisplayName
		}
		cyan.Printf("<%s> ", author)
		fmt.Println(m.Content)
	}

	if len(msgs) == 0 {
		fmt.Println("No messages.")
	}
	return nil
}
