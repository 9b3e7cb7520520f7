package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-sync-go/catalog"
)

func TestExecuteSwapNativeAttachesFunds(t *testing.T) {
	q := &fakeQuerier{}
	pair := &catalog.Pair{ContractAddr: "secret1pair", Symbols: [2]string{"SCRT", "sETH"}}

	receipt, err := ExecuteSwap(context.Background(), q, SwapRequest{
		Pair:              pair,
		FromToken:         scrtToken,
		OfferAmount:       10,
		AskAmount:         0.005,
		SlippageTolerance: 0.005,
	})
	require.NoError(t, err)
	assert.Equal(t, "AB12", receipt.TxHash)

	require.Len(t, q.executedAddrs, 1)
	assert.Equal(t, "secret1pair", q.executedAddrs[0])
	require.Len(t, q.executedFunds[0], 1)
	assert.Equal(t, Coin{Denom: "uscrt", Amount: "10000000"}, q.executedFunds[0][0])

	msg, ok := q.executedMsgs[0].(swapMsg)
	require.True(t, ok)
	require.NotNil(t, msg.Swap.OfferAsset)
	assert.Equal(t, "10000000", msg.Swap.OfferAsset.Amount)
	assert.Equal(t, "uscrt", msg.Swap.OfferAsset.Info.NativeToken.Denom)
	assert.Equal(t, "0", msg.Swap.MaxSpread)
	// belief price = 1 / (ask*(1-slippage)/offer) = 10/0.004975
	assert.Equal(t, "2010.050251256281399037", msg.Swap.BeliefPrice)
}

func TestExecuteSwapSnip20SendsEmbeddedMsg(t *testing.T) {
	q := &fakeQuerier{}
	pair := &catalog.Pair{ContractAddr: "secret1pair", Symbols: [2]string{"sETH", "SCRT"}}

	_, err := ExecuteSwap(context.Background(), q, SwapRequest{
		Pair:              pair,
		FromToken:         sethToken,
		OfferAmount:       0.5,
		AskAmount:         1000,
		SlippageTolerance: 0.01,
	})
	require.NoError(t, err)

	require.Len(t, q.executedAddrs, 1)
	assert.Equal(t, "secret1eth", q.executedAddrs[0], "snip20 swap goes through the token contract")
	assert.Nil(t, q.executedFunds[0])

	send, ok := q.executedMsgs[0].(sendMsg)
	require.True(t, ok)
	assert.Equal(t, "secret1pair", send.Send.Recipient)
	assert.Equal(t, "500000000000000000", send.Send.Amount)

	inner, err := base64.StdEncoding.DecodeString(send.Send.Msg)
	require.NoError(t, err)
	var embedded swapMsg
	require.NoError(t, json.Unmarshal(inner, &embedded))
	assert.Nil(t, embedded.Swap.OfferAsset, "amount travels with the send, not the embedded msg")
	assert.Equal(t, "0", embedded.Swap.MaxSpread)
	assert.NotEmpty(t, embedded.Swap.BeliefPrice)
}

func TestExecuteSwapRejectsBadInput(t *testing.T) {
	q := &fakeQuerier{}
	_, err := ExecuteSwap(context.Background(), q, SwapRequest{})
	assert.Error(t, err)

	pair := &catalog.Pair{ContractAddr: "secret1pair"}
	_, err = ExecuteSwap(context.Background(), q, SwapRequest{Pair: pair, FromToken: scrtToken, OfferAmount: 0, AskAmount: 1})
	assert.Error(t, err)
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "0.25", formatDecimal(0.25))
	assert.Equal(t, "2", formatDecimal(2))
}
