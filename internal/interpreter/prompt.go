package interpreter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ai-commands/internal/command"
)

func buildPrompt(userText string, today time.Time) string {
	return strings.Join([]string{
		"Role:",
		"You parse short commands that create a transaction, a todo, or a blog post.",
		"",
		"Check these patterns in order:",
		todoPatterns(),
		"",
		postPatterns(),
		"",
		transactionPatterns(),
		"",
		"Decision Rules:",
		"1) Text containing \"todo:\" or \"task:\", or starting with add todo or create task, MUST be create_todo.",
		"2) Text containing \"post:\" or \"blog:\", or starting with create post or write blog, MUST be create_post.",
		"3) Only when neither applies, check for a transaction.",
		"",
		"Output Contract:",
		outputContract(today),
		"",
		fmt.Sprintf("User command: %q", normalizePromptInput(userText)),
		"",
		"Return ONLY the JSON object. No markdown. No explanation.",
	}, "\n")
}

func todoPatterns() string {
	return strings.Join([]string{
		"1. TODO:",
		"- Starts with \"add todo\", \"create task\", \"todo:\", \"task:\", \"new todo\" or \"new task\".",
		"- Contains \"todo:\" or \"task:\" anywhere.",
		"- \"Add todo: Finish project report\" -> create_todo with title \"Finish project report\".",
		"- \"todo: Buy groceries\" -> create_todo with title \"Buy groceries\".",
	}, "\n")
}

func postPatterns() string {
	return strings.Join([]string{
		"2. BLOG POST:",
		"- Starts with \"create post\", \"write blog\", \"post:\", \"blog:\", \"new post\" or \"write post\".",
		"- Contains \"post:\" or \"blog:\" anywhere.",
		"- \"Create post: My first blog\" -> create_post with title \"My first blog\".",
		"- \"Write blog: Today's learning\" -> create_post with title \"Today's learning\".",
	}, "\n")
}

func transactionPatterns() string {
	return strings.Join([]string{
		"3. TRANSACTION (only when no todo or post keyword is present):",
		"- Contains a number and a money keyword (\"baht\", \"bath\", \"$\", \"฿\", \"บาท\").",
		"- Or starts with \"income\", \"expense\", \"รายรับ\" or \"รายจ่าย\".",
		"- \"Expense 50 baht for lunch\" -> create_transaction.",
		"- \"Income 1000 from sales\" -> create_transaction.",
	}, "\n")
}

func outputContract(today time.Time) string {
	return strings.Join([]string{
		"Return JSON with exactly one of these shapes.",
		`Todo: {"action": "create_todo", "title": "<task without the todo: prefix>", "status": "pending"}`,
		`Post: {"action": "create_post", "title": "<title without the post: prefix>", "content": "<same as title if no separate content>"}`,
		fmt.Sprintf(`Transaction: {"action": "create_transaction", "title": "<description>", "amount": 123, "kind": "income" or "expense", "date": "%s"}`,
			today.Format("2006-01-02")),
	}, "\n")
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// stripFences removes markdown code fencing the model adds despite being
// told not to.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func decodePayload(raw string) (command.Payload, error) {
	text := stripFences(raw)
	if text == "" {
		return nil, errors.New("interpreter: empty response text")
	}
	dec := json.NewDecoder(bytes.NewBufferString(text))
	var out command.Payload
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("interpreter: decode payload: %w", err)
	}
	if out == nil {
		return nil, errors.New("interpreter: payload is not an object")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, errors.New("interpreter: decode payload: multiple JSON values")
		}
		return nil, fmt.Errorf("interpreter: decode payload trailing data: %w", err)
	}
	return out, nil
}
