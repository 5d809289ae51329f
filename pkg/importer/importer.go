// Package importer converts exported chat records (WeChat text exports,
// JSON message dumps and CSV files) into conversations the analysis engine
// accepts.
package importer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"lingopulse-server/pkg/conversation"
	"lingopulse-server/pkg/errors"
	"lingopulse-server/pkg/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Format identifies a chat record format.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "txt"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var (
	// 2023-12-01 10:30:25 张三: 你好
	txtDatedLine = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})\s+([^:：]+)[:：]\s*(.+)$`)
	// 张三 10:30:25 你好
	txtTimedLine = regexp.MustCompile(`^([^0-9]+)\s+(\d{2}:\d{2}:\d{2})\s+(.+)$`)

	// System notices and decorated lines; a real message starts with a CJK
	// character, a letter or a digit.
	systemNotice = regexp.MustCompile(`^(系统消息|system|通知|提示)`)
	messageStart = regexp.MustCompile(`^[a-zA-Z0-9\x{4e00}-\x{9fff}]`)
)

// Importer parses chat record exports into conversations.
type Importer struct {
	logger *logrus.Logger
}

// NewImporter creates an importer.
func NewImporter(logger *logrus.Logger) *Importer {
	return &Importer{logger: logger}
}

// Import reads a chat record in the given format and returns the parsed
// conversation. FormatAuto sniffs the content. The conversation gets a fresh
// ID; the title (may be empty) is carried through from the caller.
func (im *Importer) Import(format Format, title string, r io.Reader) (*conversation.Conversation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		im.recordError(format, "read")
		return nil, errors.Wrap(err, "failed to read chat record")
	}

	if format == "" || format == FormatAuto {
		format = detectFormat(data)
	}

	var turns []conversation.Turn
	switch format {
	case FormatText:
		turns, err = parseText(data)
	case FormatJSON:
		turns, err = parseJSON(data)
	case FormatCSV:
		turns, err = parseCSV(data)
	default:
		im.recordError(format, "unsupported")
		return nil, errors.Wrap(errors.ErrUnsupportedFormat, "cannot import chat record",
			map[string]interface{}{"format": string(format)})
	}
	if err != nil {
		im.recordError(format, "parse")
		return nil, err
	}
	if len(turns) == 0 {
		im.recordError(format, "empty")
		return nil, errors.Wrap(errors.ErrEmptyRecord, "no usable messages in chat record",
			map[string]interface{}{"format": string(format)})
	}

	conv := &conversation.Conversation{
		ID:    uuid.NewString(),
		Title: title,
		Turns: turns,
	}

	if metrics.ImportsTotal != nil {
		metrics.ImportsTotal.WithLabelValues(string(format)).Inc()
	}
	im.logger.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"format":          string(format),
		"turns":           len(turns),
	}).Info("Imported chat record")

	return conv, nil
}

func (im *Importer) recordError(format Format, reason string) {
	if metrics.ImportErrors != nil {
		metrics.ImportErrors.WithLabelValues(string(format), reason).Inc()
	}
}

// detectFormat sniffs the payload: JSON documents open with a brace or
// bracket, CSV has commas and newlines, anything else is treated as a WeChat
// text export.
func detectFormat(data []byte) Format {
	content := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(content, "[") || strings.HasPrefix(content, "{"):
		return FormatJSON
	case strings.Contains(content, ",") && strings.Contains(content, "\n"):
		return FormatCSV
	default:
		return FormatText
	}
}

// parseText parses WeChat text exports line by line. Lines that match
// neither message pattern (day separators, recall notices) are skipped.
func parseText(data []byte) ([]conversation.Turn, error) {
	var turns []conversation.Turn
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := txtDatedLine.FindStringSubmatch(line); m != nil {
			appendTurn(&turns, strings.TrimSpace(m[2]), m[3], m[1])
			continue
		}
		if m := txtTimedLine.FindStringSubmatch(line); m != nil {
			appendTurn(&turns, strings.TrimSpace(m[1]), m[3], m[2])
		}
	}
	return turns, nil
}

// rawMessage is one loosely-typed message from a JSON or CSV export. Export
// tools disagree on field names, so every known alias is tried in order.
type rawMessage map[string]interface{}

var (
	senderFields    = []string{"speaker", "sender", "from", "from_user", "user", "name", "nickname", "sender_name"}
	contentFields   = []string{"content", "text", "msg", "message", "body"}
	timestampFields = []string{"timestamp", "time", "date", "created_at"}
	typeFields      = []string{"type", "msg_type", "message_type", "category"}
)

// parseJSON accepts a bare message array, {"messages": [...]}, the nested
// {"chat": {"messages": [...]}} export shape, or a single message object.
func parseJSON(data []byte) ([]conversation.Turn, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "invalid JSON chat record")
	}

	var messages []rawMessage
	switch v := doc.(type) {
	case []interface{}:
		messages = toRawMessages(v)
	case map[string]interface{}:
		if list, ok := v["messages"].([]interface{}); ok {
			messages = toRawMessages(list)
		} else if chat, ok := v["chat"].(map[string]interface{}); ok {
			if list, ok := chat["messages"].([]interface{}); ok {
				messages = toRawMessages(list)
			}
		} else if list, ok := v["turns"].([]interface{}); ok {
			messages = toRawMessages(list)
		} else {
			messages = []rawMessage{v}
		}
	default:
		return nil, errors.New("invalid JSON chat record: expected an object or array")
	}

	var turns []conversation.Turn
	for _, msg := range messages {
		if messageType(msg) != "text" {
			continue
		}
		appendTurn(&turns, stringField(msg, senderFields), stringField(msg, contentFields), stringField(msg, timestampFields))
	}
	return turns, nil
}

// parseCSV expects a header row naming at least a sender and content column,
// using the same field aliases as the JSON importer.
func parseCSV(data []byte) ([]conversation.Turn, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "invalid CSV chat record")
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	var turns []conversation.Turn
	for _, record := range records[1:] {
		msg := make(rawMessage, len(header))
		for i, col := range header {
			if i < len(record) {
				msg[strings.ToLower(strings.TrimSpace(col))] = record[i]
			}
		}
		if messageType(msg) != "text" {
			continue
		}
		appendTurn(&turns, stringField(msg, senderFields), stringField(msg, contentFields), stringField(msg, timestampFields))
	}
	return turns, nil
}

func toRawMessages(list []interface{}) []rawMessage {
	out := make([]rawMessage, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func stringField(msg rawMessage, aliases []string) string {
	for _, field := range aliases {
		if v, ok := msg[field]; ok {
			switch s := v.(type) {
			case string:
				return strings.TrimSpace(s)
			case float64:
				return strings.TrimSpace(fmt.Sprintf("%v", s))
			}
		}
	}
	return ""
}

// messageType normalizes the message type field. Unknown and missing types
// are treated as text; images, voice and video messages carry no analyzable
// content and are dropped by the caller.
func messageType(msg rawMessage) string {
	for _, field := range typeFields {
		v, ok := msg[field]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch strings.ToLower(s) {
		case "image", "img", "pic":
			return "image"
		case "voice", "audio":
			return "voice"
		case "video":
			return "video"
		default:
			return "text"
		}
	}
	return "text"
}

// appendTurn adds a turn after content validation. System notices and lines
// that do not open with a letter, digit or CJK character are dropped.
func appendTurn(turns *[]conversation.Turn, speaker, content, timestamp string) {
	content = strings.TrimSpace(content)
	if content == "" || systemNotice.MatchString(content) || !messageStart.MatchString(content) {
		return
	}
	*turns = append(*turns, conversation.Turn{
		Speaker:   speaker,
		Content:   content,
		Timestamp: timestamp,
	})
}
