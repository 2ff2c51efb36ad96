package sale

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/icosale/internal/contract"
	"github.com/yolodolo42/icosale/internal/contract/contracttest"
)

var buyer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type staticAccount struct {
	addr common.Address
	ok   bool
}

func (s staticAccount) Account() (common.Address, bool) { return s.addr, s.ok }

func connected() AccountSource    { return staticAccount{addr: buyer, ok: true} }
func disconnected() AccountSource { return staticAccount{} }

func newGateway(b contract.Backend) *contract.Gateway {
	return contract.NewGateway(b, contracttest.SaleAddress, contracttest.StableAddress)
}

func units(n int64, decimals int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil))
}
