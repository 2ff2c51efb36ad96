package tx

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEstimator struct {
	nonce    uint64
	tip      *big.Int
	price    *big.Int
	gas      uint64
	gasErr   error
	lastCall ethereum.CallMsg
}

func (f *fakeEstimator) GetNonce(context.Context, string, common.Address) (uint64, error) {
	return f.nonce, nil
}
func (f *fakeEstimator) SuggestGasTipCap(context.Context, string) (*big.Int, error) {
	return f.tip, nil
}
func (f *fakeEstimator) SuggestGasPrice(context.Context, string) (*big.Int, error) {
	return f.price, nil
}
func (f *fakeEstimator) EstimateGas(_ context.Context, _ string, msg ethereum.CallMsg) (uint64, error) {
	f.lastCall = msg
	return f.gas, f.gasErr
}

var (
	sale  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	buyer = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func TestValidate(t *testing.T) {
	intent := Intent{To: sale, ValueWei: big.NewInt(100)}

	t.Run("missing value", func(t *testing.T) {
		assert.ErrorIs(t, Validate(Intent{To: sale}, Policy{}), ErrValueMissing)
	})

	t.Run("empty policy allows", func(t *testing.T) {
		assert.NoError(t, Validate(intent, Policy{}))
	})

	t.Run("deny list", func(t *testing.T) {
		err := Validate(intent, Policy{DenyTo: []common.Address{sale}})
		assert.ErrorIs(t, err, ErrPolicyViolation)
	})

	t.Run("allow list", func(t *testing.T) {
		assert.NoError(t, Validate(intent, Policy{AllowTo: []common.Address{sale}}))
		err := Validate(intent, Policy{AllowTo: []common.Address{buyer}})
		assert.ErrorIs(t, err, ErrPolicyViolation)
	})

	t.Run("spend limit", func(t *testing.T) {
		assert.NoError(t, Validate(intent, Policy{MaxPerTxWei: big.NewInt(100)}))
		err := Validate(intent, Policy{MaxPerTxWei: big.NewInt(99)})
		assert.ErrorIs(t, err, ErrPolicyViolation)
	})
}

func TestBuildUnsignedTx(t *testing.T) {
	t.Run("fills nonce fees and gas", func(t *testing.T) {
		est := &fakeEstimator{nonce: 7, tip: big.NewInt(2), price: big.NewInt(10), gas: 50_000}
		intent := Intent{
			Chain:    "sepolia",
			ChainID:  big.NewInt(11155111),
			From:     buyer,
			To:       sale,
			ValueWei: big.NewInt(1000),
			Data:     []byte{0x01, 0x02},
		}

		tx, fees, err := BuildUnsignedTx(context.Background(), est, intent)
		require.NoError(t, err)

		assert.Equal(t, uint64(7), tx.Nonce())
		assert.Equal(t, uint64(50_000), tx.Gas())
		assert.Equal(t, big.NewInt(11155111), tx.ChainId())
		assert.Equal(t, &sale, tx.To())
		assert.Equal(t, []byte{0x01, 0x02}, tx.Data())
		assert.Equal(t, big.NewInt(500_000+1000), fees.EstimatedCostWei)
		assert.Equal(t, buyer, est.lastCall.From)
	})

	t.Run("raises fee cap to tip", func(t *testing.T) {
		est := &fakeEstimator{tip: big.NewInt(20), price: big.NewInt(10), gas: 21000}
		tx, _, err := BuildUnsignedTx(context.Background(), est, Intent{To: sale, ValueWei: big.NewInt(0)})
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(20), tx.GasFeeCap())
	})

	t.Run("uses overrides", func(t *testing.T) {
		nonce, gas := uint64(3), uint64(99_000)
		est := &fakeEstimator{gasErr: errors.New("should not be called")}
		tx, _, err := BuildUnsignedTx(context.Background(), est, Intent{
			To: sale, ValueWei: big.NewInt(0), Nonce: &nonce, GasLimit: &gas,
			GasFeeCap: big.NewInt(5), GasTipCap: big.NewInt(1),
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(3), tx.Nonce())
		assert.Equal(t, uint64(99_000), tx.Gas())
	})

	t.Run("propagates estimation failure", func(t *testing.T) {
		est := &fakeEstimator{tip: big.NewInt(1), price: big.NewInt(1), gasErr: errors.New("execution reverted: sale ended")}
		_, _, err := BuildUnsignedTx(context.Background(), est, Intent{To: sale, ValueWei: big.NewInt(0)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sale ended")
	})
}
