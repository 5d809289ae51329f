// Package lexicon holds the static trigger-phrase tables that drive every
// classifier in the analysis engine. Tables are built once and must be
// treated as read-only; concurrent reads are safe.
package lexicon

import "strings"

// Sentiment bucket labels.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// FallbackTopic is returned when no topic category matches a turn.
const FallbackTopic = "general discussion"

// Table maps a category label to its trigger phrases. Matching is
// substring-based: a category matches a text when any of its phrases occurs
// anywhere in the text.
type Table map[string][]string

// Categories returns the category labels in a stable (sorted-insertion)
// order. Table iteration order in Go is random, so detectors that need a
// deterministic category order must use this.
func (t Table) Categories(order []string) []string {
	out := make([]string, 0, len(order))
	for _, c := range order {
		if _, ok := t[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Markers groups the single-purpose phrase lists used by the key-point and
// intent profilers.
type Markers struct {
	Importance    []string
	Structure     []string
	Evidence      []string
	Collaboration []string
	Authority     []string
	Decision      []string
	Suggestion    []string
	Analysis      []string
}

// Set is the full lexicon configuration consumed by the analyzer. A Set is
// immutable after construction and may be shared across concurrent calls.
type Set struct {
	Topics      Table
	TopicOrder  []string
	Sentiment   Table
	Intents     Table
	IntentOrder []string
	Markers     Markers
}

// ContainsAny reports whether any phrase occurs as a substring of text.
func ContainsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// CountMatches returns how many distinct phrases occur as substrings of text.
// Each phrase counts at most once regardless of repetition.
func CountMatches(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			n++
		}
	}
	return n
}

// MatchedPhrases returns the subset of phrases found in text, in phrase-list
// order.
func MatchedPhrases(text string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			out = append(out, p)
		}
	}
	return out
}

// Default returns the built-in lexicon set. The trigger phrases target
// Chinese chat transcripts (the source material this system was built for)
// with a handful of English markers mixed in where transcripts commonly
// carry them.
func Default() *Set {
	return &Set{
		Topics: Table{
			"work":       {"工作", "项目", "任务", "汇报", "加班", "开会", "会议", "同事", "客户", "deadline"},
			"technology": {"技术", "代码", "程序", "系统", "开发", "测试", "上线", "bug", "算法", "数据库"},
			"product":    {"产品", "需求", "功能", "体验", "用户", "版本", "设计", "界面"},
			"life":       {"吃饭", "睡觉", "周末", "旅游", "电影", "运动", "天气", "逛街", "做饭"},
			"emotion":    {"心情", "感觉", "开心", "难过", "压力", "焦虑", "感动", "想你"},
			"planning":   {"计划", "安排", "打算", "准备", "下周", "明天", "约", "时间表"},
			"finance":    {"钱", "工资", "预算", "报销", "投资", "花费", "价格", "成本"},
			"study":      {"学习", "考试", "课程", "论文", "读书", "培训", "笔记"},
		},
		TopicOrder: []string{"work", "technology", "product", "life", "emotion", "planning", "finance", "study"},
		Sentiment: Table{
			Positive: {"好", "棒", "优秀", "喜欢", "高兴", "快乐", "满意", "赞", "精彩", "幸福", "美好", "愉快", "开心", "感谢", "感恩", "太好了", "完美", "同意", "支持", "成功", "厉害", "good", "great", "excellent", "love", "happy", "agree", "support"},
			Negative: {"坏", "差", "讨厌", "难过", "失望", "沮丧", "痛苦", "悲伤", "愤怒", "焦虑", "担心", "害怕", "绝望", "无聊", "烦躁", "糟糕", "问题", "困难", "失败", "错误", "不同意", "生气", "麻烦", "bad", "terrible", "hate", "angry", "sad", "disappointed"},
			Neutral:  {"还行", "一般", "普通", "平常", "可以", "凑合"},
		},
		Intents: Table{
			"inquiry":       {"什么", "怎么", "为什么", "如何", "哪里", "请问", "吗", "呢", "能不能", "是不是"},
			"suggestion":    {"建议", "不如", "可以试试", "要不", "或许", "最好"},
			"decision":      {"决定", "确定", "就这么定", "定了", "拍板", "执行"},
			"emotion":       {"开心", "难过", "感谢", "喜欢", "讨厌", "感动", "心情"},
			"problemsolve":  {"解决", "处理", "修复", "方案", "排查", "搞定"},
			"collaboration": {"一起", "配合", "协作", "合作", "共同", "我们来"},
		},
		IntentOrder: []string{"inquiry", "suggestion", "decision", "emotion", "problemsolve", "collaboration"},
		Markers: Markers{
			Importance:    []string{"重要", "关键", "核心", "必须", "一定要", "注意", "重点", "务必", "important", "critical"},
			Structure:     []string{"首先", "其次", "然后", "最后", "第一", "第二", "第三", "总之", "综上", "first", "second", "finally"},
			Evidence:      []string{"数据显示", "研究表明", "事实上", "据统计", "根据", "调查显示", "报告指出", "证明", "data shows", "research indicates"},
			Collaboration: []string{"一起", "我们", "配合", "协作", "合作", "共同", "大家"},
			Authority:     []string{"必须", "决定", "要求", "安排", "负责", "批准", "通知"},
			Decision:      []string{"决定", "确定", "就这么办", "定了", "拍板"},
			Suggestion:    []string{"建议", "不如", "可以", "试试", "或许"},
			Analysis:      []string{"分析", "原因", "因为", "所以", "数据", "逻辑", "对比"},
		},
	}
}
