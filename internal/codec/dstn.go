package codec

import (
	"math/big"
	"strings"

	"explorer/internal/errors"
)

// 单位体系: 1 DSTN = 10^18 Wei，与以太坊标准一致，固定不可配置
var weiPerDstn = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// DefaultDstnDecimals 展示用默认小数位数
const DefaultDstnDecimals = 4

// WeiToDstn 将Wei十进制字符串转换为DSTN表示
//
// 小数部分按decimals截断（不舍入）后去除尾部零，
// 但至少保留一位小数: 整数金额渲染为"N.0"，绝不是裸"N"
//
// 示例:
//   - WeiToDstn("1000000000000000000", 4) // "1.0"
//   - WeiToDstn("1234567890000000000", 4) // "1.2345"
//   - WeiToDstn("500000000000000000", 4)  // "0.5"
func WeiToDstn(wei string, decimals int) (string, error) {
	weiBig, ok := new(big.Int).SetString(wei, 10)
	if !ok || weiBig.Sign() < 0 {
		return "", errors.NewInvalidEncoding(wei)
	}

	integerPart := new(big.Int)
	remainder := new(big.Int)
	integerPart.QuoRem(weiBig, weiPerDstn, remainder)

	if remainder.Sign() == 0 {
		return integerPart.String() + ".0", nil
	}

	// 小数部分补齐18位后按精度截断，再去除尾部零
	decimalStr := remainder.String()
	if len(decimalStr) < 18 {
		decimalStr = strings.Repeat("0", 18-len(decimalStr)) + decimalStr
	}
	if decimals < 0 {
		decimals = 0
	}
	if decimals > 18 {
		decimals = 18
	}
	trimmed := strings.TrimRight(decimalStr[:decimals], "0")

	if trimmed == "" {
		return integerPart.String() + ".0", nil
	}

	return integerPart.String() + "." + trimmed, nil
}

// DstnToWei 将DSTN十进制字符串转换为Wei表示
//
// 小数部分补齐/截断到恰好18位后与整数部分合并。
// 支持无小数部分("5")、无整数部分(".5")、小数点后无数字("5.")
func DstnToWei(dstn string) (string, error) {
	if dstn == "" || dstn == "." {
		return "", errors.NewInvalidEncoding(dstn)
	}

	if !strings.Contains(dstn, ".") {
		n, ok := new(big.Int).SetString(dstn, 10)
		if !ok || n.Sign() < 0 {
			return "", errors.NewInvalidEncoding(dstn)
		}
		return new(big.Int).Mul(n, weiPerDstn).String(), nil
	}

	parts := strings.SplitN(dstn, ".", 2)
	integer, decimal := parts[0], parts[1]
	if integer == "" {
		integer = "0"
	}

	// 小数部分补齐18位，超出部分截断
	padded := decimal + strings.Repeat("0", 18)
	padded = padded[:18]

	integerBig, ok := new(big.Int).SetString(integer, 10)
	if !ok || integerBig.Sign() < 0 {
		return "", errors.NewInvalidEncoding(dstn)
	}
	decimalBig, ok := new(big.Int).SetString(padded, 10)
	if !ok {
		return "", errors.NewInvalidEncoding(dstn)
	}

	integerWei := new(big.Int).Mul(integerBig, weiPerDstn)
	return integerWei.Add(integerWei, decimalBig).String(), nil
}

// FormatDstn 格式化Wei金额为带单位的DSTN字符串
//
// 示例: FormatDstn("1500000000000000000", 2) // "1.5 DSTN"
func FormatDstn(wei string, decimals int) (string, error) {
	dstn, err := WeiToDstn(wei, decimals)
	if err != nil {
		return "", err
	}
	return dstn + " DSTN", nil
}
