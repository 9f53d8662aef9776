package abi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"explorer/internal/errors"
	"explorer/internal/store"
	"explorer/pkg/models"
)

// MetadataStore ABI服务对持久层的依赖
type MetadataStore interface {
	ContractByAddress(ctx context.Context, address string) (*models.Contract, error)
	UpdateContractMetadata(ctx context.Context, address string, meta *store.ContractMetadata) (bool, error)
	ReplaceContractMethods(ctx context.Context, address string, methods []*models.ContractMethod) error
	MethodsByContract(ctx context.Context, address string) ([]*models.ContractMethod, error)
	MethodByName(ctx context.Context, address, name string) (*models.ContractMethod, error)
}

// parsedContract 按地址记忆化的ABI解析结果，ABI更新时整体失效
type parsedContract struct {
	raw    []byte
	parsed *ethabi.ABI
}

// Service 合约ABI管理与调用编解码
// 方法缓存是ABI解析结果的记忆化，随ABI更新整体重建
type Service struct {
	store  MetadataStore
	logger *logrus.Logger

	mu     sync.RWMutex
	parsed map[string]*parsedContract
}

// NewService 创建ABI服务
func NewService(store MetadataStore, logger *logrus.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		parsed: make(map[string]*parsedContract),
	}
}

// loadContractABI 取合约的解析后ABI，结果按地址记忆化
// 合约不存在返回NotFound，未登记ABI返回BadRequest
func (s *Service) loadContractABI(ctx context.Context, address string) (*parsedContract, error) {
	s.mu.RLock()
	entry, hit := s.parsed[address]
	s.mu.RUnlock()
	if hit {
		return entry, nil
	}

	contract, err := s.store.ContractByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, errors.NewNotFound("合约", address)
	}
	if len(contract.ABI) == 0 {
		return nil, errors.NewBadRequest(fmt.Sprintf("合约 %s 未登记ABI", address))
	}

	parsed, err := parseABI(contract.ABI)
	if err != nil {
		return nil, err
	}

	entry = &parsedContract{raw: contract.ABI, parsed: parsed}
	s.mu.Lock()
	s.parsed[address] = entry
	s.mu.Unlock()
	return entry, nil
}

// invalidate 丢弃合约的记忆化解析结果
func (s *Service) invalidate(address string) {
	s.mu.Lock()
	delete(s.parsed, address)
	s.mu.Unlock()
}

// UpdateMetadata 更新合约的ABI与验证信息，ABI变更时重建方法缓存
func (s *Service) UpdateMetadata(ctx context.Context, address string, meta *store.ContractMetadata) error {
	if !common.IsHexAddress(address) {
		return errors.NewBadRequest(fmt.Sprintf("无效的合约地址: %s", address))
	}

	if len(meta.ABI) > 0 {
		if _, err := parseABI(meta.ABI); err != nil {
			return err
		}
	}

	found, err := s.store.UpdateContractMetadata(ctx, address, meta)
	if err != nil {
		return err
	}
	if !found {
		return errors.NewNotFound("合约", address)
	}

	if len(meta.ABI) > 0 {
		s.invalidate(address)
		if err := s.RefreshMethods(ctx, address, meta.ABI); err != nil {
			return err
		}
	}
	return nil
}

// RefreshMethods 从ABI重建合约的方法缓存
// 只缓存function片段，event/constructor等不进缓存
func (s *Service) RefreshMethods(ctx context.Context, address string, abiJSON []byte) error {
	parsed, err := parseABI(abiJSON)
	if err != nil {
		return err
	}
	return s.persistMethods(ctx, address, parsed)
}

// persistMethods 把解析后的function片段整体写入方法缓存
func (s *Service) persistMethods(ctx context.Context, address string, parsed *ethabi.ABI) error {
	var methods []*models.ContractMethod
	for name, method := range parsed.Methods {
		inputs := make([]models.MethodInput, 0, len(method.Inputs))
		for _, input := range method.Inputs {
			inputs = append(inputs, models.MethodInput{
				Name: input.Name,
				Type: input.Type.String(),
			})
		}
		inputsJSON, err := json.Marshal(inputs)
		if err != nil {
			return errors.Wrap(err, errors.KindInternal, "INTERNAL", "序列化方法参数失败")
		}

		methods = append(methods, &models.ContractMethod{
			ContractAddress: address,
			MethodName:      name,
			MethodSignature: "0x" + hex.EncodeToString(method.ID),
			Inputs:          inputsJSON,
			Type:            "function",
			StateMutability: method.StateMutability,
		})
	}

	if err := s.store.ReplaceContractMethods(ctx, address, methods); err != nil {
		return err
	}

	s.logger.Infof("合约 %s 方法缓存已重建，共 %d 个方法", address, len(methods))
	return nil
}

// Methods 返回合约的缓存方法列表
// 缓存为空但合约有ABI时现场重建（缓存始终可由ABI重新构造）
func (s *Service) Methods(ctx context.Context, address string) ([]*models.ContractMethod, error) {
	methods, err := s.store.MethodsByContract(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(methods) > 0 {
		return methods, nil
	}

	contract, err := s.store.ContractByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, errors.NewNotFound("合约", address)
	}
	if len(contract.ABI) == 0 {
		return nil, nil
	}

	if err := s.RefreshMethods(ctx, address, contract.ABI); err != nil {
		return nil, err
	}
	return s.store.MethodsByContract(ctx, address)
}

// EncodeCall 把方法名与参数编码为链上call data
// 先查(address, method)方法缓存，未命中时解析一次ABI并落库后再编码
// 方法不在ABI中时返回BadRequest
func (s *Service) EncodeCall(ctx context.Context, address, methodName string, args []interface{}) (string, error) {
	cached, err := s.store.MethodByName(ctx, address, methodName)
	if err != nil {
		return "", err
	}

	entry, err := s.loadContractABI(ctx, address)
	if err != nil {
		return "", err
	}

	method, exists := entry.parsed.Methods[methodName]
	if !exists {
		return "", errors.NewBadRequest(fmt.Sprintf("方法 %s 不在合约ABI中", methodName))
	}

	if cached == nil {
		// 首次调用该方法，缓存落库摊薄后续调用的ABI构造成本
		if err := s.persistMethods(ctx, address, entry.parsed); err != nil {
			return "", err
		}
	}
	if len(args) != len(method.Inputs) {
		return "", errors.NewBadRequest(
			fmt.Sprintf("方法 %s 需要 %d 个参数，收到 %d 个", methodName, len(method.Inputs), len(args)))
	}

	coerced := make([]interface{}, len(args))
	for i, arg := range args {
		value, err := coerceArg(method.Inputs[i].Type, arg)
		if err != nil {
			return "", err
		}
		coerced[i] = value
	}

	data, err := entry.parsed.Pack(methodName, coerced...)
	if err != nil {
		return "", errors.NewBadRequest(fmt.Sprintf("参数编码失败: %v", err))
	}
	return "0x" + hex.EncodeToString(data), nil
}

// DecodeResult best-effort解码只读调用的返回值
// 解码失败时返回原始Hex，不报错
func (s *Service) DecodeResult(ctx context.Context, address, methodName, result string) interface{} {
	entry, err := s.loadContractABI(ctx, address)
	if err != nil {
		return result
	}
	method, exists := entry.parsed.Methods[methodName]
	if !exists || len(method.Outputs) == 0 {
		return result
	}

	data, err := hex.DecodeString(strings.TrimPrefix(result, "0x"))
	if err != nil {
		return result
	}

	values, err := method.Outputs.UnpackValues(data)
	if err != nil {
		s.logger.Debugf("解码方法 %s 返回值失败: %v", methodName, err)
		return result
	}

	decoded := make([]interface{}, len(values))
	for i, value := range values {
		decoded[i] = renderValue(value)
	}
	if len(decoded) == 1 {
		return decoded[0]
	}
	return decoded
}

// parseABI 解析ABI JSON，格式错误映射为BadRequest
func parseABI(abiJSON []byte) (*ethabi.ABI, error) {
	parsed, err := ethabi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return nil, errors.NewBadRequest(fmt.Sprintf("无效的ABI: %v", err))
	}
	return &parsed, nil
}

// coerceArg 把JSON反序列化出的参数值转换为编码器要求的Go类型
func coerceArg(t ethabi.Type, arg interface{}) (interface{}, error) {
	switch t.T {
	case ethabi.AddressTy:
		s, ok := arg.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, errors.NewBadRequest(fmt.Sprintf("无效的地址参数: %v", arg))
		}
		return common.HexToAddress(s), nil

	case ethabi.UintTy, ethabi.IntTy:
		return coerceBigInt(arg)

	case ethabi.BoolTy:
		b, ok := arg.(bool)
		if !ok {
			return nil, errors.NewBadRequest(fmt.Sprintf("无效的布尔参数: %v", arg))
		}
		return b, nil

	case ethabi.StringTy:
		s, ok := arg.(string)
		if !ok {
			return nil, errors.NewBadRequest(fmt.Sprintf("无效的字符串参数: %v", arg))
		}
		return s, nil

	case ethabi.BytesTy:
		s, ok := arg.(string)
		if !ok {
			return nil, errors.NewBadRequest(fmt.Sprintf("无效的字节参数: %v", arg))
		}
		data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil {
			return nil, errors.NewBadRequest(fmt.Sprintf("无效的字节参数: %v", arg))
		}
		return data, nil

	default:
		return nil, errors.NewBadRequest(fmt.Sprintf("暂不支持的参数类型: %s", t.String()))
	}
}

// coerceBigInt JSON数字与十进制/Hex字符串统一转为*big.Int
func coerceBigInt(arg interface{}) (*big.Int, error) {
	switch v := arg.(type) {
	case string:
		base := 10
		s := v
		if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
			base = 16
			s = v[2:]
		}
		n, ok := new(big.Int).SetString(s, base)
		if !ok {
			return nil, errors.NewBadRequest(fmt.Sprintf("无效的数字参数: %v", arg))
		}
		return n, nil
	case float64:
		if v != float64(int64(v)) {
			return nil, errors.NewBadRequest(fmt.Sprintf("数字参数不能带小数: %v", arg))
		}
		return big.NewInt(int64(v)), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, errors.NewBadRequest(fmt.Sprintf("无效的数字参数: %v", arg))
	}
}

// renderValue 把解码值转为JSON友好的表示
func renderValue(value interface{}) interface{} {
	switch v := value.(type) {
	case *big.Int:
		return v.String()
	case common.Address:
		return strings.ToLower(v.Hex())
	case []byte:
		return "0x" + hex.EncodeToString(v)
	default:
		return v
	}
}
