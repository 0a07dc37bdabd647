// Package platform holds the catalog of known source platforms and the
// logic that matches a raw export against them.
//
// Each platform is described by an immutable Profile: per canonical field,
// an ordered list of acceptable raw header names, plus filename hints and a
// separate direction-column alias list used only for amount-sign
// resolution. Adding support for a new platform means adding one registry
// entry; there is no type hierarchy to extend.
//
// Detection is pure and total - it always returns a profile, falling back
// to the generic bank profile. A wrong guess surfaces downstream as a
// missing-column error rather than a detection failure.
package platform

import (
	"strings"
)

// Field names a canonical schema field that profiles map raw headers onto.
type Field string

const (
	FieldTimestamp     Field = "timestamp"
	FieldAmount        Field = "amount"
	FieldCategory      Field = "category"
	FieldCounterparty  Field = "counterparty"
	FieldTransactionID Field = "transaction_id"
)

// mappedFields lists the canonical fields resolved by the column mapper, in
// schema order. Direction is deliberately excluded: it parameterizes amount
// normalization and is never part of the canonical mapping.
var mappedFields = []Field{
	FieldTimestamp,
	FieldAmount,
	FieldCategory,
	FieldCounterparty,
	FieldTransactionID,
}

// Profile describes one source platform. Alias lists are ordered: earlier
// aliases are preferred over later, more generic ones.
type Profile struct {
	// ID is the platform identifier recorded in raw_source.
	ID string
	// Label is the human-readable account name recorded in account.
	Label string
	// Currency is the currency code stamped onto extracted records.
	Currency string

	// FilenameHints are substrings of a source filename that identify the
	// platform ahead of any header inspection.
	FilenameHints []string

	// Aliases holds the ordered raw header candidates per canonical field.
	Aliases map[Field][]string

	// DirectionAliases are raw headers whose values mark a row as inflow
	// or outflow. Looked up separately from the canonical mapping.
	DirectionAliases []string

	// IncomeAliases and ExpenseAliases name the split columns used by bank
	// exports that separate inflows and outflows instead of carrying a
	// direction indicator.
	IncomeAliases  []string
	ExpenseAliases []string
}

// registry lists the known platforms in registration order. Order matters:
// header-overlap detection takes the first profile that qualifies.
var registry = []*Profile{
	{
		ID:            "alipay",
		Label:         "Alipay",
		Currency:      "CNY",
		FilenameHints: []string{"支付宝", "alipay"},
		Aliases: map[Field][]string{
			FieldTimestamp:     {"创建时间", "交易创建时间", "付款时间"},
			FieldAmount:        {"金额"},
			FieldCategory:      {"类型", "交易类型"},
			FieldCounterparty:  {"交易对方", "对方账户"},
			FieldTransactionID: {"订单号", "交易订单号"},
		},
		DirectionAliases: []string{"收/支", "收入/支出"},
	},
	{
		ID:            "wechat",
		Label:         "WeChat",
		Currency:      "CNY",
		FilenameHints: []string{"微信", "wechat", "wx"},
		Aliases: map[Field][]string{
			FieldTimestamp:     {"交易时间"},
			FieldAmount:        {"金额(元)", "金额"},
			FieldCategory:      {"交易类型"},
			FieldCounterparty:  {"交易对方", "商品"},
			FieldTransactionID: {"交易单号", "商户单号"},
		},
		DirectionAliases: []string{"收/支"},
	},
	{
		ID:            "bank",
		Label:         "Bank",
		Currency:      "CNY",
		FilenameHints: []string{"bank", "银行", "bankcard", "流水"},
		Aliases: map[Field][]string{
			FieldTimestamp:     {"交易时间", "交易日期", "记账时间", "交易日期时间"},
			FieldAmount:        {"金额", "交易金额", "收入金额", "支出金额"},
			FieldCategory:      {"摘要", "交易摘要", "交易类型"},
			FieldCounterparty:  {"对方户名", "交易对手", "对方账号", "对方名称"},
			FieldTransactionID: {"流水号", "交易流水号", "参考号"},
		},
		DirectionAliases: []string{"收付标志", "借贷标志"},
		IncomeAliases:    []string{"收入金额", "贷方金额"},
		ExpenseAliases:   []string{"支出金额", "借方金额"},
	},
}

// FallbackID is the profile used when nothing matches. The generic bank
// profile carries the broadest alias lists, so a wrong guess still gives
// downstream mapping its best chance.
const FallbackID = "bank"

// Lookup returns the profile registered under the given identifier, or the
// fallback profile when the identifier is unknown.
func Lookup(id string) *Profile {
	for _, p := range registry {
		if p.ID == id {
			return p
		}
	}
	return Lookup(FallbackID)
}

// IDs returns the registered platform identifiers in registration order.
func IDs() []string {
	ids := make([]string, len(registry))
	for i, p := range registry {
		ids[i] = p.ID
	}
	return ids
}

// Detect picks the platform profile for a raw table.
//
// Precedence, first rule wins:
//  1. The filename contains one of a profile's filename hints.
//  2. The header set contains at least one timestamp alias AND at least one
//     amount or direction alias of a profile; registration order breaks
//     ties.
//  3. Fallback to the generic bank profile.
//
// Detect is pure and total: it always returns a registered profile ID.
func Detect(headers []string, filename string) string {
	id, _ := DetectWithFallback(headers, filename)
	return id
}

// DetectWithFallback is Detect plus a flag reporting whether the result
// came from the fallback rule rather than a positive match. Callers use
// the flag to surface an informational platform-fallback notice.
func DetectWithFallback(headers []string, filename string) (string, bool) {
	lowered := strings.ToLower(filename)
	for _, p := range registry {
		for _, hint := range p.FilenameHints {
			if strings.Contains(lowered, hint) {
				return p.ID, false
			}
		}
	}

	headerSet := make(map[string]bool, len(headers))
	for _, h := range headers {
		headerSet[strings.TrimSpace(h)] = true
	}

	for _, p := range registry {
		if anyPresent(headerSet, p.Aliases[FieldTimestamp]) &&
			(anyPresent(headerSet, p.Aliases[FieldAmount]) || anyPresent(headerSet, p.DirectionAliases)) {
			return p.ID, false
		}
	}

	return FallbackID, true
}

func anyPresent(headerSet map[string]bool, candidates []string) bool {
	for _, c := range candidates {
		if headerSet[c] {
			return true
		}
	}
	return false
}

// MapColumns resolves raw headers to canonical fields for a platform.
//
// For each canonical field the profile's alias list is scanned in declared
// order and the first alias present in the raw headers wins. Fields with no
// alias present are left out of the mapping; callers must tolerate partial
// mappings for every field except timestamp.
func MapColumns(platformID string, headers []string) map[string]Field {
	profile := Lookup(platformID)

	headerSet := make(map[string]bool, len(headers))
	for _, h := range headers {
		headerSet[strings.TrimSpace(h)] = true
	}

	mapping := make(map[string]Field)
	for _, field := range mappedFields {
		for _, alias := range profile.Aliases[field] {
			if headerSet[alias] {
				mapping[alias] = field
				break
			}
		}
	}

	return mapping
}

// DirectionColumn returns the first direction alias present in the raw
// headers, if any. The direction column parameterizes amount-sign
// resolution and never appears in the canonical mapping.
func DirectionColumn(platformID string, headers []string) (string, bool) {
	return firstPresent(Lookup(platformID).DirectionAliases, headers)
}

// IncomeExpenseColumns returns the split income and expense columns present
// in the raw headers. Either may be absent.
func IncomeExpenseColumns(platformID string, headers []string) (income, expense string, ok bool) {
	profile := Lookup(platformID)
	income, incomeOK := firstPresent(profile.IncomeAliases, headers)
	expense, expenseOK := firstPresent(profile.ExpenseAliases, headers)
	return income, expense, incomeOK || expenseOK
}

func firstPresent(candidates, headers []string) (string, bool) {
	headerSet := make(map[string]bool, len(headers))
	for _, h := range headers {
		headerSet[strings.TrimSpace(h)] = true
	}
	for _, c := range candidates {
		if headerSet[c] {
			return c, true
		}
	}
	return "", false
}
