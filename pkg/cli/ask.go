package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	askConversationID string
	askWait           bool
	askPollInterval   time.Duration
)

type askResponse struct {
	Status            string              `json:"status"`
	RequestID         string              `json:"requestId"`
	Answer            string              `json:"answer,omitempty"`
	SourcesSearched   []string            `json:"sourcesSearched,omitempty"`
	ConversationID    string              `json:"conversationId,omitempty"`
	RequiresExtension bool                `json:"requiresExtension,omitempty"`
	SourcesNeeded     []string            `json:"sourcesNeeded,omitempty"`
	Instructions      []instructionRecord `json:"instructions,omitempty"`
}

type instructionRecord struct {
	RequestID string   `json:"request_id"`
	Source    string   `json:"source"`
	Keywords  []string `json:"keywords"`
}

type statusResponse struct {
	Status        string   `json:"status"`
	RequestID     string   `json:"requestId"`
	SourcesNeeded []string `json:"sourcesNeeded,omitempty"`
	Answer        string   `json:"answer,omitempty"`
}

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Ask a question across your connected sources",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(strings.Join(args, " "))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <request-id>",
	Short: "Check the status of a pending request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(args[0])
	},
}

var (
	submitSource   string
	submitSnippets []string
)

var submitCmd = &cobra.Command{
	Use:   "submit <request-id>",
	Short: "Submit agent-scraped snippets for a pending request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(args[0])
	},
}

func init() {
	askCmd.Flags().StringVarP(&askConversationID, "conversation", "c", "", "Conversation ID for follow-up questions")
	askCmd.Flags().BoolVarP(&askWait, "wait", "w", true, "Poll pending requests until terminal")
	askCmd.Flags().DurationVar(&askPollInterval, "poll-interval", 2*time.Second, "Poll interval while waiting")

	submitCmd.Flags().StringVarP(&submitSource, "source", "s", "", "Source kind (required)")
	submitCmd.Flags().StringSliceVar(&submitSnippets, "snippet", nil, "Snippet text (repeatable)")
	submitCmd.MarkFlagRequired("source")
}

func runAsk(query string) error {
	client := NewClient(gatewayHTTPAddr, authToken)

	var resp askResponse
	err := client.do("POST", "/api/v1/ask", map[string]string{
		"query":          query,
		"conversationId": askConversationID,
	}, &resp)
	if err != nil {
		PrintError(err)
		return err
	}

	if resp.Status == "complete" {
		printAnswer(resp.RequestID, resp.Answer, resp.ConversationID)
		return nil
	}

	if PrintJSON(resp) {
		return nil
	}

	PrintInfo(fmt.Sprintf("pending request %s, waiting on: %s", resp.RequestID, strings.Join(resp.SourcesNeeded, ", ")))
	for _, inst := range resp.Instructions {
		PrintInfo(fmt.Sprintf("agent should search %s for: %s", inst.Source, strings.Join(inst.Keywords, ", ")))
	}

	if !askWait {
		return nil
	}
	return pollUntilTerminal(client, resp.RequestID)
}

func pollUntilTerminal(client *Client, requestID string) error {
	for {
		time.Sleep(askPollInterval)

		var status statusResponse
		if err := client.do("GET", "/api/v1/ask/"+requestID, nil, &status); err != nil {
			PrintError(err)
			return err
		}

		switch status.Status {
		case "complete":
			printAnswer(status.RequestID, status.Answer, "")
			return nil
		case "failed":
			err := fmt.Errorf("request %s failed during processing", requestID)
			PrintError(err)
			return err
		default:
			PrintInfo(fmt.Sprintf("status: %s", status.Status))
		}
	}
}

func runStatus(requestID string) error {
	client := NewClient(gatewayHTTPAddr, authToken)

	var status statusResponse
	if err := client.do("GET", "/api/v1/ask/"+requestID, nil, &status); err != nil {
		PrintError(err)
		return err
	}

	if PrintJSON(status) {
		return nil
	}

	PrintInfo(fmt.Sprintf("status: %s", status.Status))
	if len(status.SourcesNeeded) > 0 {
		PrintInfo(fmt.Sprintf("waiting on: %s", strings.Join(status.SourcesNeeded, ", ")))
	}
	if status.Answer != "" {
		fmt.Println()
		fmt.Println(status.Answer)
	}
	return nil
}

func runSubmit(requestID string) error {
	client := NewClient(gatewayHTTPAddr, authToken)

	var status statusResponse
	err := client.do("POST", "/api/v1/ask/"+requestID+"/dom-results", map[string]any{
		"source":   submitSource,
		"snippets": submitSnippets,
	}, &status)
	if err != nil {
		PrintError(err)
		return err
	}

	if PrintJSON(status) {
		return nil
	}
	PrintSuccess(fmt.Sprintf("submitted %d snippets for %s, status: %s", len(submitSnippets), submitSource, status.Status))
	return nil
}

func printAnswer(requestID, answer, conversationID string) {
	if PrintJSON(map[string]string{"requestId": requestID, "answer": answer, "conversationId": conversationID}) {
		return
	}
	PrintSuccess(fmt.Sprintf("request %s complete", requestID))
	fmt.Println()
	fmt.Println(answer)
	if conversationID != "" {
		fmt.Println()
		PrintInfo(fmt.Sprintf("follow up with --conversation %s", conversationID))
	}
}
