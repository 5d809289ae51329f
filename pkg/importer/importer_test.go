package importer

import (
	"strings"
	"testing"

	"lingopulse-server/pkg/errors"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImporter() *Importer {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewImporter(logger)
}

func TestImportWeChatText(t *testing.T) {
	record := `2024-01-01 12:00:00 张三: 今天的方案大家觉得怎么样
2024-01-01 12:01:30 李四: 我觉得整体不错，支持这个方向

2024-01-01 12:02:00 张三: 那我们下周开始推进`

	conv, err := newTestImporter().Import(FormatText, "产品讨论", strings.NewReader(record))
	require.NoError(t, err, "Import should succeed for a well-formed WeChat export")

	assert.NotEmpty(t, conv.ID, "Imported conversation should get an ID")
	assert.Equal(t, "产品讨论", conv.Title)
	require.Len(t, conv.Turns, 3, "Blank lines should be skipped")
	assert.Equal(t, "张三", conv.Turns[0].Speaker)
	assert.Equal(t, "今天的方案大家觉得怎么样", conv.Turns[0].Content)
	assert.Equal(t, "2024-01-01 12:00:00", conv.Turns[0].Timestamp)
	assert.Equal(t, "李四", conv.Turns[1].Speaker)
}

func TestImportWeChatTextTimeOnlyFormat(t *testing.T) {
	record := `张三 10:30:25 早上好
李四 10:31:00 早，今天先过一遍需求`

	conv, err := newTestImporter().Import(FormatText, "", strings.NewReader(record))
	require.NoError(t, err)
	require.Len(t, conv.Turns, 2)
	assert.Equal(t, "张三", conv.Turns[0].Speaker)
	assert.Equal(t, "10:30:25", conv.Turns[0].Timestamp)
	assert.Equal(t, "早上好", conv.Turns[0].Content)
}

func TestImportTextSkipsSystemNotices(t *testing.T) {
	record := `2024-01-01 12:00:00 张三: 项目进展顺利
2024-01-01 12:00:05 群助手: 系统消息 有新成员加入
2024-01-01 12:00:10 李四: 【撤回了一条消息】`

	conv, err := newTestImporter().Import(FormatText, "", strings.NewReader(record))
	require.NoError(t, err)
	require.Len(t, conv.Turns, 1, "System notices and decorated lines should be dropped")
	assert.Equal(t, "张三", conv.Turns[0].Speaker)
}

func TestImportJSONMessagesObject(t *testing.T) {
	record := `{"messages": [
		{"sender": "张三", "content": "方案已经更新了", "timestamp": "2024-01-01 12:00:00"},
		{"sender": "李四", "content": "收到，我看一下", "time": "2024-01-01 12:01:00"},
		{"sender": "李四", "content": "cat.png", "type": "image"}
	]}`

	conv, err := newTestImporter().Import(FormatJSON, "", strings.NewReader(record))
	require.NoError(t, err)
	require.Len(t, conv.Turns, 2, "Non-text messages should be dropped")
	assert.Equal(t, "张三", conv.Turns[0].Speaker)
	assert.Equal(t, "方案已经更新了", conv.Turns[0].Content)
	assert.Equal(t, "2024-01-01 12:01:00", conv.Turns[1].Timestamp, "time is an accepted timestamp alias")
}

func TestImportJSONBareArray(t *testing.T) {
	record := `[{"from": "张三", "text": "开始吧"}, {"from": "李四", "msg": "好的"}]`

	conv, err := newTestImporter().Import(FormatJSON, "", strings.NewReader(record))
	require.NoError(t, err)
	require.Len(t, conv.Turns, 2)
	assert.Equal(t, "张三", conv.Turns[0].Speaker, "from is an accepted sender alias")
	assert.Equal(t, "好的", conv.Turns[1].Content, "msg is an accepted content alias")
}

func TestImportJSONInvalid(t *testing.T) {
	_, err := newTestImporter().Import(FormatJSON, "", strings.NewReader(`{"messages": [}`))
	assert.Error(t, err, "Malformed JSON should be rejected")
}

func TestImportCSV(t *testing.T) {
	record := `timestamp,sender,content
2024-01-01 12:00:00,张三,这个功能需要重构
2024-01-01 12:01:00,李四,同意，现在的实现太复杂了`

	conv, err := newTestImporter().Import(FormatCSV, "", strings.NewReader(record))
	require.NoError(t, err)
	require.Len(t, conv.Turns, 2)
	assert.Equal(t, "张三", conv.Turns[0].Speaker)
	assert.Equal(t, "这个功能需要重构", conv.Turns[0].Content)
	assert.Equal(t, "2024-01-01 12:01:00", conv.Turns[1].Timestamp)
}

func TestImportAutoDetection(t *testing.T) {
	im := newTestImporter()

	jsonConv, err := im.Import(FormatAuto, "", strings.NewReader(`[{"sender": "a", "content": "hello there"}]`))
	require.NoError(t, err)
	assert.Len(t, jsonConv.Turns, 1, "Bracket-prefixed payloads should be sniffed as JSON")

	txtConv, err := im.Import(FormatAuto, "", strings.NewReader("2024-01-01 12:00:00 张三: 测试消息"))
	require.NoError(t, err)
	assert.Len(t, txtConv.Turns, 1, "Dated lines should be sniffed as text")
}

func TestImportEmptyRecord(t *testing.T) {
	_, err := newTestImporter().Import(FormatText, "", strings.NewReader("无法解析的内容\n---"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptyRecord), "Records with no usable messages should report ErrEmptyRecord")
}

func TestImportUnsupportedFormat(t *testing.T) {
	_, err := newTestImporter().Import(Format("xml"), "", strings.NewReader("<chat/>"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedFormat))
}
