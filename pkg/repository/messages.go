package repository

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// TraditionalChinese is the second locale shipped with the catalog
var TraditionalChinese = language.MustParse("zh-TW")

var englishMessages = map[string]string{
	"record_not_found":              "Record with ID %s not found",
	"find_failed":                   "Failed to find record: %s",
	"invalid_filter_format":         "Invalid filter format",
	"filter_must_be_array":          "Filter must be an array",
	"invalid_relation_field_format": "Invalid relation field format. Use: relation.column",
	"invalid_order_direction":       "Order direction must be asc or desc",
	"invalid_sort_column":           "Invalid sort column: %s",
	"create_failed":                 "Failed to create model: %s",
	"update_failed":                 "Failed to update model: %s",
	"delete_failed":                 "Failed to delete model: %s",
	"batch_create_failed":           "Failed to create multiple records: %s",
	"batch_update_failed":           "Failed to update multiple records: %s",
	"batch_delete_failed":           "Failed to delete multiple records: %s",
	"force_delete_failed":           "Failed to force delete model: %s",
	"restore_failed":                "Failed to restore model: %s",
	"update_or_create_failed":       "Failed to update or create model: %s",
	"exists_check_failed":           "Failed to check existence: %s",
	"count_failed":                  "Failed to count records: %s",
	"operation_failed":              "Operation failed: %s",
}

var traditionalChineseMessages = map[string]string{
	"record_not_found":              "找不到 ID 為 %s 的記錄",
	"find_failed":                   "查找記錄失敗: %s",
	"invalid_filter_format":         "過濾格式無效",
	"filter_must_be_array":          "過濾條件必須是陣列格式",
	"invalid_relation_field_format": "關聯欄位格式無效。請使用: relation.column",
	"invalid_order_direction":       "排序方向必須是 asc 或 desc",
	"invalid_sort_column":           "無效的排序欄位: %s",
	"create_failed":                 "建立模型失敗: %s",
	"update_failed":                 "更新模型失敗: %s",
	"delete_failed":                 "刪除模型失敗: %s",
	"batch_create_failed":           "批量建立記錄失敗: %s",
	"batch_update_failed":           "批量更新記錄失敗: %s",
	"batch_delete_failed":           "批量刪除記錄失敗: %s",
	"force_delete_failed":           "強制刪除模型失敗: %s",
	"restore_failed":                "恢復模型失敗: %s",
	"update_or_create_failed":       "更新或建立模型失敗: %s",
	"exists_check_failed":           "檢查存在性失敗: %s",
	"count_failed":                  "計算記錄數量失敗: %s",
	"operation_failed":              "操作失敗: %s",
}

var defaultMessages = NewMessages()

// DefaultMessages returns the shared catalog used by (*Error).Error
func DefaultMessages() *Messages {
	return defaultMessages
}

// Messages is a locale table of error message templates keyed by message key.
// Templates use fmt verbs; errors supply the arguments.
type Messages struct {
	builder *catalog.Builder
}

// NewMessages creates a catalog preloaded with the English and Traditional
// Chinese tables. Unknown locales fall back to English.
func NewMessages() *Messages {
	m := &Messages{builder: catalog.NewBuilder(catalog.Fallback(language.English))}
	m.mustLoad(language.English, englishMessages)
	m.mustLoad(TraditionalChinese, traditionalChineseMessages)
	return m
}

// mustLoad panics on a template the catalog rejects; the built-in tables
// are static
func (m *Messages) mustLoad(tag language.Tag, table map[string]string) {
	for key, text := range table {
		if err := m.Set(tag, key, text); err != nil {
			panic(err)
		}
	}
}

// Set overrides or adds a template for a locale
func (m *Messages) Set(tag language.Tag, key, text string) error {
	if err := m.builder.SetString(tag, key, text); err != nil {
		return fmt.Errorf("failed to set message %s for %s: %w", key, tag, err)
	}
	return nil
}

// Languages returns the locales with at least one template, English first
func (m *Messages) Languages() []language.Tag {
	tags := []language.Tag{language.English}
	for _, tag := range m.builder.Languages() {
		if tag != language.English {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Render formats err in the given locale
func (m *Messages) Render(tag language.Tag, err *Error) string {
	p := message.NewPrinter(tag, message.Catalog(m.builder))
	return p.Sprintf(err.MessageKey(), err.messageArgs()...)
}

// Localize renders any error. Non-repository errors keep their own text.
func (m *Messages) Localize(tag language.Tag, err error) string {
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return m.Render(tag, repoErr)
	}
	return err.Error()
}

// ParseLocale parses a locale name such as "en" or "zh-TW", falling back to
// English for empty or malformed input.
func ParseLocale(name string) language.Tag {
	if name == "" {
		return language.English
	}
	tag, err := language.Parse(name)
	if err != nil {
		return language.English
	}
	return tag
}
