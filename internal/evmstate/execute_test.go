package evmstate

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/narwhalabci/evm-engine/internal/wire"
)

var (
	alice = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	bob   = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	carol = common.HexToAddress("0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC")
)

func transferTx(from, to common.Address, value uint64, gasPrice uint64) *wire.TransactionRequest {
	gas := hexutil.Uint64(21000)
	gp := hexutil.Big(*uint256.NewInt(gasPrice).ToBig())
	v := hexutil.Big(*uint256.NewInt(value).ToBig())
	return &wire.TransactionRequest{
		From:     &from,
		To:       &wire.AddressOrName{Address: &to},
		Value:    &v,
		Gas:      &gas,
		GasPrice: &gp,
	}
}

// Single transfer debits the sender's balance and gas cost, credits the recipient.
func TestExecuteSingleTransfer(t *testing.T) {
	s := New(DefaultEnv(1))
	s.SeedAccount(alice, mustU256("1500000000000000000")) // 1.5 ETH

	tx := transferTx(alice, bob, 500, 875000000)
	res, err := Execute(s, tx, Write)
	require.NoError(t, err)
	require.False(t, res.Reverted)
	require.Equal(t, uint64(21000), res.GasUsed)

	require.Equal(t, uint64(500), s.Balance(bob).Uint64())

	expectedAlice := mustU256("1500000000000000000")
	expectedAlice.Sub(expectedAlice, uint256.NewInt(500))
	gasCost := new(uint256.Int).Mul(uint256.NewInt(21000), uint256.NewInt(875000000))
	expectedAlice.Sub(expectedAlice, gasCost)
	require.Equal(t, expectedAlice.String(), s.Balance(alice).String())
}

// Conflicting double-spend ordering within one certificate: the second transfer must revert once the sender's balance is exhausted.
func TestExecuteConflictingDoubleSpend(t *testing.T) {
	s := New(DefaultEnv(1))
	s.SeedAccount(alice, mustU256("1000000000000000000")) // 1 ETH

	tx1 := transferTx(alice, bob, 1_000_000_000_000_000_000, 0)
	tx1.Gas = gasPtr(21000)
	res1, err := Execute(s, tx1, Write)
	require.NoError(t, err)
	require.False(t, res1.Reverted)
	require.Equal(t, "1000000000000000000", s.Balance(bob).String())

	tx2 := transferTx(alice, carol, 1_000_000_000_000_000_000, 0)
	tx2.Gas = gasPtr(21000)
	res2, err := Execute(s, tx2, Write)
	require.NoError(t, err)
	require.True(t, res2.Reverted)
	require.Equal(t, "0", s.Balance(carol).String())
}

// A ReadOnly execution (the EthCall query path) must not write its state
// diff back into the receiving State (query isolation).
func TestExecuteReadOnlyDoesNotMutate(t *testing.T) {
	s := New(DefaultEnv(1))
	s.SeedAccount(alice, uint256.NewInt(100))
	s.SeedAccount(bob, uint256.NewInt(100))

	before := s.Balance(bob).String()

	tx := transferTx(alice, bob, 100, 0)
	_, err := Execute(s, tx, ReadOnly)
	require.NoError(t, err)

	require.Equal(t, before, s.Balance(bob).String())
}

// ResolveRecipient rejects symbolic names before Execute ever runs; Execute
// itself also refuses as a defense-in-depth check.
func TestExecuteRejectsSymbolicRecipient(t *testing.T) {
	s := New(DefaultEnv(1))
	tx := &wire.TransactionRequest{To: &wire.AddressOrName{Name: "bob.eth"}}
	_, err := Execute(s, tx, Write)
	require.ErrorIs(t, err, wire.ErrInvalidRecipient)
}

func mustU256(dec string) *uint256.Int {
	v, err := uint256.FromDecimal(dec)
	if err != nil {
		panic(err)
	}
	return v
}

func gasPtr(v uint64) *hexutil.Uint64 {
	g := hexutil.Uint64(v)
	return &g
}
