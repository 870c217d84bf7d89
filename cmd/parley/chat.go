package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"parley/internal/api"
	"parley/internal/chat/session"
	"parley/internal/domain/models/chat"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	titleStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			controller, apiClient, cleanup, err := buildController(cfg, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			return runChatLoop(cmd, controller, apiClient)
		},
	}
}

func runChatLoop(cmd *cobra.Command, controller *session.Controller, apiClient *api.Client) error {
	ctx := rootContext(cmd)
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, titleStyle.Render("parley"))
	fmt.Fprintln(out, toolStyle.Render("/new starts a fresh conversation, /continue resumes a cut-off reply, /quit exits"))

	// The bot's knowledge flag selects the "retrieving knowledge"
	// placeholder for every turn of this session.
	botHasKnowledge := false
	if flagBotID != "" {
		bot, err := apiClient.GetBot(ctx, flagBotID)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("bot lookup failed: "+err.Error()))
		} else {
			botHasKnowledge = bot.HasKnowledge
			fmt.Fprintln(out, toolStyle.Render(fmt.Sprintf("bot: %s (%s)", bot.Title, bot.SyncStatus)))
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, userStyle.Render("> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/new":
			controller.NewChat()
			fmt.Fprintln(out, toolStyle.Render("started a new conversation"))
			continue
		case line == "/continue":
			if !controller.ShouldContinue() {
				fmt.Fprintln(out, toolStyle.Render("nothing to continue"))
				continue
			}
			if err := controller.ContinueGenerate(ctx, session.ContinueInput{BotID: botIDFlag()}); err != nil {
				fmt.Fprintln(out, errorStyle.Render(err.Error()))
				continue
			}
			renderReply(out, controller)
			continue
		}

		err := controller.PostChat(ctx, session.PostChatInput{
			Content:         line,
			BotID:           botIDFlag(),
			BotHasKnowledge: botHasKnowledge,
		})
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
			continue
		}
		renderReply(out, controller)
	}
}

// renderReply prints the assistant's latest message plus any tool calls
// still tracked for the turn and the citations backing it.
func renderReply(out io.Writer, controller *session.Controller) {
	msgs := controller.Messages()
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != chat.RoleAssistant {
		return
	}

	fmt.Fprintln(out, assistantStyle.Render(last.FirstTextBody()))

	for _, call := range toolCallLines(controller) {
		fmt.Fprintln(out, toolStyle.Render(call))
	}

	if docs := controller.RelatedDocuments(last.ID); len(docs) > 0 {
		sort.Slice(docs, func(i, j int) bool { return docs[i].Rank < docs[j].Rank })
		for _, d := range docs {
			fmt.Fprintln(out, toolStyle.Render(fmt.Sprintf("[%d] %s", d.Rank, d.SourceLink)))
		}
	}
}

func toolCallLines(controller *session.Controller) []string {
	var lines []string
	for id, call := range controller.AgentToolCalls() {
		lines = append(lines, fmt.Sprintf("tool %s (%s): %s", call.Name, id, call.Status))
	}
	sort.Strings(lines)
	return lines
}

func botIDFlag() *string {
	if flagBotID == "" {
		return nil
	}
	return &flagBotID
}
