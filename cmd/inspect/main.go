// Inspector CLI: dumps the stored conversations as a table, and with
// -user renders that user's inbox projection.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"huddle-chat/domain"
	"huddle-chat/projection"
)

func main() {
	dbPath := flag.String("db", "/tmp/huddle/badger", "Path to badger DB")
	userID := flag.String("user", "", "Render the inbox of this user")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithReadOnly(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	conversations, err := scanConversations(db)
	if err != nil {
		log.Fatal(err)
	}

	renderConversations(conversations)

	if *userID != "" {
		fmt.Println()
		renderInbox(conversations, *userID)
	}
}

func scanConversations(db *badger.DB) ([]*domain.Conversation, error) {
	var conversations []*domain.Conversation
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("conv:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var conv domain.Conversation
				if err := json.Unmarshal(v, &conv); err != nil {
					// Log and keep scanning instead of aborting the dump
					fmt.Printf("Error unmarshaling key %s: %v\n", string(it.Item().Key()), err)
					return nil
				}
				conversations = append(conversations, &conv)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return conversations, err
}

func renderConversations(conversations []*domain.Conversation) {
	table := newTable([]string{"ID", "Type", "Status", "Title", "Active/Total", "Messages", "Last Message", "Flagged"})

	for _, conv := range conversations {
		lastAt := ""
		if conv.Metadata.LastMessageAt != nil {
			lastAt = conv.Metadata.LastMessageAt.Format("2006-01-02 15:04")
		}
		flagged := ""
		if conv.Moderation.Flagged {
			flagged = color.Red.Sprint("FLAGGED")
		}
		table.Append([]string{
			conv.ID,
			string(conv.Type),
			colorStatus(conv.Status),
			conv.Title,
			fmt.Sprintf("%d/%d", len(conv.ActiveParticipants()), len(conv.Participants)),
			strconv.Itoa(conv.Metadata.TotalMessages),
			lastAt,
			flagged,
		})
	}
	table.Render()
}

func renderInbox(conversations []*domain.Conversation, userID string) {
	summaries := lo.Map(conversations, func(c *domain.Conversation, _ int) domain.Summary {
		return c.Summarize()
	})
	rows := projection.BuildInbox(summaries, userID)

	color.Bold.Printf("Inbox for %s\n", userID)
	table := newTable([]string{"ID", "Title", "Status", "Unread", "Last Message", "Last Activity"})
	for _, row := range rows {
		table.Append([]string{
			row.ConversationID,
			row.Title,
			string(row.Status),
			strconv.Itoa(row.Unread),
			row.LastPreview,
			row.LastActivityAt,
		})
	}
	table.Render()
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
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

func colorStatus(status domain.ConversationStatus) string {
	switch status {
	case domain.StatusActive:
		return color.Green.Sprint(status)
	case domain.StatusBlocked, domain.StatusEscalated:
		return color.Red.Sprint(status)
	case domain.StatusClosed, domain.StatusArchived:
		return color.Gray.Sprint(status)
	default:
		return string(status)
	}
}
