package abi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"explorer/internal/errors"
	"explorer/internal/store"
	"explorer/pkg/models"
)

const erc20ABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"Transfer","inputs":[]}
]`

type fakeStore struct {
	contracts    map[string]*models.Contract
	methods      map[string][]*models.ContractMethod
	replaceCalls int
	lookupCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contracts: make(map[string]*models.Contract),
		methods:   make(map[string][]*models.ContractMethod),
	}
}

func (f *fakeStore) ContractByAddress(ctx context.Context, address string) (*models.Contract, error) {
	return f.contracts[address], nil
}

func (f *fakeStore) UpdateContractMetadata(ctx context.Context, address string, meta *store.ContractMetadata) (bool, error) {
	contract, exists := f.contracts[address]
	if !exists {
		return false, nil
	}
	if len(meta.ABI) > 0 {
		contract.ABI = meta.ABI
	}
	if meta.Name != nil {
		contract.Name = meta.Name
	}
	return true, nil
}

func (f *fakeStore) ReplaceContractMethods(ctx context.Context, address string, methods []*models.ContractMethod) error {
	f.replaceCalls++
	f.methods[address] = methods
	return nil
}

func (f *fakeStore) MethodsByContract(ctx context.Context, address string) ([]*models.ContractMethod, error) {
	return f.methods[address], nil
}

func (f *fakeStore) MethodByName(ctx context.Context, address, name string) (*models.ContractMethod, error) {
	f.lookupCalls++
	for _, method := range f.methods[address] {
		if method.MethodName == name {
			return method, nil
		}
	}
	return nil, nil
}

const testContract = "0x1111111111111111111111111111111111111111"

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	fake := newFakeStore()
	fake.contracts[testContract] = &models.Contract{Address: testContract}
	return NewService(fake, logger), fake
}

func TestRefreshMethods(t *testing.T) {
	service, fake := newTestService(t)

	require.NoError(t, service.RefreshMethods(context.Background(), testContract, []byte(erc20ABI)))

	methods := fake.methods[testContract]
	require.Len(t, methods, 2, "event片段不进方法缓存")

	byName := make(map[string]*models.ContractMethod)
	for _, method := range methods {
		byName[method.MethodName] = method
	}

	transfer := byName["transfer"]
	require.NotNil(t, transfer)
	// transfer(address,uint256)的函数选择器
	assert.Equal(t, "0xa9059cbb", transfer.MethodSignature)
	assert.Equal(t, "nonpayable", transfer.StateMutability)

	var inputs []models.MethodInput
	require.NoError(t, json.Unmarshal(transfer.Inputs, &inputs))
	require.Len(t, inputs, 2)
	assert.Equal(t, "address", inputs[0].Type)
	assert.Equal(t, "uint256", inputs[1].Type)

	balanceOf := byName["balanceOf"]
	require.NotNil(t, balanceOf)
	assert.Equal(t, "0x70a08231", balanceOf.MethodSignature)
	assert.Equal(t, "view", balanceOf.StateMutability)
}

func TestRefreshMethodsInvalidABI(t *testing.T) {
	service, _ := newTestService(t)

	err := service.RefreshMethods(context.Background(), testContract, []byte(`not json`))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindBadRequest))
}

func TestUpdateMetadataRebuildsCache(t *testing.T) {
	service, fake := newTestService(t)

	err := service.UpdateMetadata(context.Background(), testContract, &store.ContractMetadata{
		ABI: []byte(erc20ABI),
	})
	require.NoError(t, err)
	assert.Len(t, fake.methods[testContract], 2)
	assert.JSONEq(t, erc20ABI, string(fake.contracts[testContract].ABI))
}

func TestUpdateMetadataUnknownContract(t *testing.T) {
	service, _ := newTestService(t)

	err := service.UpdateMetadata(context.Background(),
		"0x2222222222222222222222222222222222222222",
		&store.ContractMetadata{ABI: []byte(erc20ABI)})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestEncodeCall(t *testing.T) {
	service, fake := newTestService(t)
	fake.contracts[testContract].ABI = []byte(erc20ABI)

	data, err := service.EncodeCall(context.Background(), testContract, "balanceOf",
		[]interface{}{"0x3333333333333333333333333333333333333333"})
	require.NoError(t, err)
	assert.Equal(t,
		"0x70a082310000000000000000000000003333333333333333333333333333333333333333",
		data)
}

func TestEncodeCallNumericCoercion(t *testing.T) {
	service, fake := newTestService(t)
	fake.contracts[testContract].ABI = []byte(erc20ABI)

	// JSON数字、十进制字符串、Hex字符串都应可用作uint256
	for _, amount := range []interface{}{float64(1000), "1000", "0x3e8"} {
		data, err := service.EncodeCall(context.Background(), testContract, "transfer",
			[]interface{}{"0x3333333333333333333333333333333333333333", amount})
		require.NoError(t, err)
		assert.Equal(t,
			"0xa9059cbb"+
				"0000000000000000000000003333333333333333333333333333333333333333"+
				"00000000000000000000000000000000000000000000000000000000000003e8",
			data)
	}
}

// 缓存未命中时解析一次ABI并落库，后续调用命中缓存不再重建
func TestEncodeCallPersistsMethodCacheOnMiss(t *testing.T) {
	service, fake := newTestService(t)
	fake.contracts[testContract].ABI = []byte(erc20ABI)
	require.Empty(t, fake.methods[testContract])

	_, err := service.EncodeCall(context.Background(), testContract, "transfer",
		[]interface{}{"0x3333333333333333333333333333333333333333", "1000"})
	require.NoError(t, err)

	// 首次调用落库全部function片段
	assert.Len(t, fake.methods[testContract], 2)
	assert.Equal(t, 1, fake.replaceCalls)

	cached, err := fake.MethodByName(context.Background(), testContract, "transfer")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "0xa9059cbb", cached.MethodSignature)

	// 第二次调用命中缓存，不再重建
	fake.lookupCalls = 0
	_, err = service.EncodeCall(context.Background(), testContract, "transfer",
		[]interface{}{"0x3333333333333333333333333333333333333333", "1000"})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.replaceCalls)
	assert.Equal(t, 1, fake.lookupCalls)
}

// ABI更新后记忆化解析结果失效，旧方法随缓存重建消失
func TestEncodeCallAfterABIUpdate(t *testing.T) {
	service, fake := newTestService(t)
	fake.contracts[testContract].ABI = []byte(erc20ABI)

	_, err := service.EncodeCall(context.Background(), testContract, "transfer",
		[]interface{}{"0x3333333333333333333333333333333333333333", "1000"})
	require.NoError(t, err)

	mintABI := `[{"type":"function","name":"mint","stateMutability":"nonpayable",
		"inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}]`
	require.NoError(t, service.UpdateMetadata(context.Background(), testContract,
		&store.ContractMetadata{ABI: []byte(mintABI)}))

	_, err = service.EncodeCall(context.Background(), testContract, "mint",
		[]interface{}{"5"})
	require.NoError(t, err)

	_, err = service.EncodeCall(context.Background(), testContract, "transfer",
		[]interface{}{"0x3333333333333333333333333333333333333333", "1000"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindBadRequest))
}

// 方法不在ABI中是用户错误，不可重试
func TestEncodeCallUnknownMethod(t *testing.T) {
	service, fake := newTestService(t)
	fake.contracts[testContract].ABI = []byte(erc20ABI)

	_, err := service.EncodeCall(context.Background(), testContract, "mint",
		[]interface{}{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindBadRequest))
	assert.False(t, errors.IsRetryable(err))
}

func TestEncodeCallArgumentMismatch(t *testing.T) {
	service, fake := newTestService(t)
	fake.contracts[testContract].ABI = []byte(erc20ABI)

	_, err := service.EncodeCall(context.Background(), testContract, "transfer",
		[]interface{}{"0x3333333333333333333333333333333333333333"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindBadRequest))

	_, err = service.EncodeCall(context.Background(), testContract, "transfer",
		[]interface{}{"不是地址", float64(1)})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindBadRequest))
}

func TestEncodeCallWithoutABI(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.EncodeCall(context.Background(), testContract, "transfer", nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindBadRequest))
}

func TestMethodsRebuildsEmptyCache(t *testing.T) {
	service, fake := newTestService(t)
	fake.contracts[testContract].ABI = []byte(erc20ABI)

	methods, err := service.Methods(context.Background(), testContract)
	require.NoError(t, err)
	assert.Len(t, methods, 2)
	assert.Len(t, fake.methods[testContract], 2, "缓存未命中时现场重建")
}

func TestDecodeResult(t *testing.T) {
	service, fake := newTestService(t)
	fake.contracts[testContract].ABI = []byte(erc20ABI)

	// balanceOf返回uint256(1000)
	decoded := service.DecodeResult(context.Background(), testContract, "balanceOf",
		"0x00000000000000000000000000000000000000000000000000000000000003e8")
	assert.Equal(t, "1000", decoded)

	// 无ABI时原样返回
	raw := service.DecodeResult(context.Background(),
		"0x2222222222222222222222222222222222222222", "balanceOf", "0xdead")
	assert.Equal(t, "0xdead", raw)
}
