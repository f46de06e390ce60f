package token

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"positionSwap/internal/model"
)

var (
	tokenAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestERC20TransferFromNeedsAllowance(t *testing.T) {
	tok := NewERC20(model.TokenMeta{Address: tokenAddr, Symbol: "TGT", Decimals: 18})
	require.True(t, tok.Mint(alice, uint256.NewInt(100)))

	require.False(t, tok.TransferFrom(bob, alice, bob, uint256.NewInt(10)))
	require.True(t, tok.Approve(alice, bob, uint256.NewInt(30)))
	require.True(t, tok.TransferFrom(bob, alice, bob, uint256.NewInt(10)))
	require.Equal(t, uint64(20), tok.Allowance(alice, bob).Uint64())
	require.False(t, tok.TransferFrom(bob, alice, bob, uint256.NewInt(25)))

	require.Equal(t, uint64(90), tok.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(10), tok.BalanceOf(bob).Uint64())
	require.Equal(t, uint64(100), tok.TotalSupply().Uint64())
}

func TestERC20RejectsOverdraftAndBlocked(t *testing.T) {
	tok := NewERC20(model.TokenMeta{Address: tokenAddr})
	require.True(t, tok.Mint(alice, uint256.NewInt(5)))
	require.False(t, tok.Transfer(alice, bob, uint256.NewInt(6)))
	require.True(t, tok.Transfer(alice, bob, new(uint256.Int)))

	tok.SetBlocked(bob, true)
	require.False(t, tok.Transfer(alice, bob, uint256.NewInt(1)))
	tok.SetBlocked(bob, false)
	require.True(t, tok.Transfer(alice, bob, uint256.NewInt(1)))
}

func TestBookDeployAndLookup(t *testing.T) {
	book := NewBook()
	tok, err := book.Deploy(model.TokenMeta{Address: tokenAddr, Symbol: "TGT"})
	require.NoError(t, err)
	require.Equal(t, model.NativeDecimals, tok.Meta().Decimals)

	_, err = book.Deploy(model.TokenMeta{Address: tokenAddr})
	require.ErrorIs(t, err, model.ErrTokenExists)

	found, err := book.Lookup(tokenAddr)
	require.NoError(t, err)
	require.Same(t, tok, found)

	_, err = book.Lookup(alice)
	require.ErrorIs(t, err, model.ErrTokenNotFound)
	require.Len(t, book.List(), 1)
}

func TestBankTransfer(t *testing.T) {
	bank := NewBank()
	bank.Fund(alice, uint256.NewInt(50))
	require.True(t, bank.Transfer(alice, bob, uint256.NewInt(20)))
	require.False(t, bank.Transfer(alice, bob, uint256.NewInt(31)))
	require.Equal(t, uint64(30), bank.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(20), bank.BalanceOf(bob).Uint64())

	bank.SetBlocked(alice, true)
	require.False(t, bank.Transfer(alice, bob, uint256.NewInt(1)))
}
