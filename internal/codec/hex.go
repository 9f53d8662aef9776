// Package codec 提供链上Hex编码与DB十进制表示之间的转换
//
// Dustin-Chain API所有数字均以0x前缀的Hex String返回，
// 入库前需要转换为十进制。大数值（余额、Wei金额、Gas等）
// 必须走任意精度路径，避免精度丢失。
package codec

import (
	"math/big"
	"strconv"
	"strings"

	"explorer/internal/errors"
)

// HexToUint64 将0x前缀的Hex String解析为uint64
// 仅用于确定不会超过机器整数宽度的小字段（nonce、计数、status、交易索引）
func HexToUint64(hex string) (uint64, error) {
	digits, err := stripHexPrefix(hex)
	if err != nil {
		return 0, err
	}

	n, parseErr := strconv.ParseUint(digits, 16, 64)
	if parseErr != nil {
		return 0, errors.NewInvalidEncoding(hex)
	}

	return n, nil
}

// HexToDecimalString 将0x前缀的Hex String转换为十进制字符串
// 使用big.Int，安全处理256位以内的任意大数值
func HexToDecimalString(hex string) (string, error) {
	digits, err := stripHexPrefix(hex)
	if err != nil {
		return "", err
	}

	n, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return "", errors.NewInvalidEncoding(hex)
	}

	return n.String(), nil
}

// Uint64ToHex 将uint64转换为0x前缀的Hex String
// HexToUint64的逆操作
func Uint64ToHex(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

// stripHexPrefix 校验并移除0x前缀
func stripHexPrefix(hex string) (string, error) {
	if len(hex) < 3 {
		// 最短合法形式为"0x0"
		return "", errors.NewInvalidEncoding(hex)
	}
	if !strings.HasPrefix(hex, "0x") && !strings.HasPrefix(hex, "0X") {
		return "", errors.NewInvalidEncoding(hex)
	}
	return hex[2:], nil
}
