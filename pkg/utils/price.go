package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// 加价方式
const (
	MarkupPercentage = "percentage"
	MarkupFlat       = "flat"
)

// zeroDecimalCurrencies 无辅币单位的币种 (ISO 4217 exponent = 0)
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true, "KRW": true, "CLP": true, "VND": true,
	"PYG": true, "ISK": true, "UGX": true, "XOF": true,
	"XAF": true,
}

// MinorUnitDigits 币种的小数位数，未知币种按 2 位处理
func MinorUnitDigits(currency string) int {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// RoundToMinorUnit 按币种辅币单位四舍五入 (远离零)
func RoundToMinorUnit(amount float64, currency string) float64 {
	return roundDecimal(decimal.NewFromFloat(amount), currency)
}

func roundDecimal(d decimal.Decimal, currency string) float64 {
	return d.Round(int32(MinorUnitDigits(currency))).InexactFloat64()
}

// ApplyMarkup 计算本地售价
// percentage: original * (1 + value/100)
// flat:       original + value
// 未知类型不加价
func ApplyMarkup(original float64, markupType string, value float64, currency string) float64 {
	// 用十进制计算，避免 1.005 这类半分值被二进制浮点截断
	price := decimal.NewFromFloat(original)
	switch markupType {
	case MarkupPercentage:
		price = price.Mul(decimal.NewFromFloat(value).Add(decimal.NewFromInt(100))).Div(decimal.NewFromInt(100))
	case MarkupFlat:
		price = price.Add(decimal.NewFromFloat(value))
	}
	return roundDecimal(price, currency)
}

// ValidMarkupType 是否为支持的加价方式
func ValidMarkupType(t string) bool {
	return t == MarkupPercentage || t == MarkupFlat
}
