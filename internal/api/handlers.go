package api

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"positionSwap/internal/engine"
	"positionSwap/internal/model"
	"positionSwap/internal/token"
	"positionSwap/internal/world"
)

// handleListPools handles GET /v1/pools
func (s *Server) handleListPools(c *gin.Context) {
	pools := s.world.Engine.Pools()
	out := make([]poolResponse, 0, len(pools))
	for _, addr := range pools {
		resp, err := s.poolResponse(addr)
		if err != nil {
			s.fail(c, err)
			return
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"pools": out})
}

// handleGetPool handles GET /v1/pools/:token
func (s *Server) handleGetPool(c *gin.Context) {
	tok, err := s.world.Token(c.Param("token"))
	if err != nil {
		s.fail(c, err)
		return
	}
	resp, err := s.poolResponse(tok.Address())
	if err != nil {
		s.fail(c, err)
		return
	}
	snap, err := s.world.Engine.Snapshot(tok.Address())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, poolDetailResponse{poolResponse: resp, Snapshot: snap})
}

// handleListPositions handles GET /v1/pools/:token/positions
func (s *Server) handleListPositions(c *gin.Context) {
	tok, err := s.world.Token(c.Param("token"))
	if err != nil {
		s.fail(c, err)
		return
	}
	positions, err := s.world.Engine.Positions(tok.Address())
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]positionResponse, 0, len(positions))
	for _, pos := range positions {
		resp, err := s.positionResponse(pos)
		if err != nil {
			s.fail(c, err)
			return
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"positions": out})
}

// handlePriceOfToken handles GET /v1/pools/:token/price/token?amount=
func (s *Server) handlePriceOfToken(c *gin.Context) {
	s.price(c, s.world.Engine.PriceOfToken)
}

// handlePriceOfEth handles GET /v1/pools/:token/price/eth?amount=
func (s *Server) handlePriceOfEth(c *gin.Context) {
	s.price(c, s.world.Engine.PriceOfEth)
}

func (s *Server) price(c *gin.Context, priceFn func(common.Address, *uint256.Int) (*uint256.Int, error)) {
	tok, err := s.world.Token(c.Param("token"))
	if err != nil {
		s.fail(c, err)
		return
	}
	amount, err := model.ParseAmount(c.Query("amount"))
	if err != nil {
		badRequest(c, err)
		return
	}
	price, err := priceFn(tok.Address(), amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount_out": amount.Dec(), "amount_in": price.Dec()})
}

// handleQuote handles POST /v1/quote
func (s *Server) handleQuote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	swapReq, err := s.swapRequest(req.Token, req.Direction, req.Kind, req.Amount, "")
	if err != nil {
		s.failRequest(c, err)
		return
	}
	in, out, err := s.world.Engine.Quote(swapReq)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quoteResponse{AmountIn: in.Dec(), AmountOut: out.Dec()})
}

// handleSwap handles POST /v1/swap
func (s *Server) handleSwap(c *gin.Context) {
	var req swapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	caller, err := world.ParseAccount(req.Account)
	if err != nil {
		badRequest(c, err)
		return
	}
	swapReq, err := s.swapRequest(req.Token, req.Direction, req.Kind, req.Amount, req.Bound)
	if err != nil {
		s.failRequest(c, err)
		return
	}
	value, err := model.ParseAmount(req.Value)
	if err != nil {
		badRequest(c, err)
		return
	}
	if req.Value == "" && swapReq.Direction == engine.BuyToken {
		if value, _, err = s.world.Engine.Quote(swapReq); err != nil {
			s.fail(c, err)
			return
		}
	}

	res, err := s.world.Engine.Swap(c.Request.Context(), engine.Call{Caller: caller, Value: value}, swapReq)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, swapResponse{
		AmountIn:  res.AmountIn.Dec(),
		AmountOut: res.AmountOut.Dec(),
		Fee:       res.Fee.Dec(),
		Seq:       res.Event.Seq,
	})
}

// handleAddLiquidity handles POST /v1/liquidity
func (s *Server) handleAddLiquidity(c *gin.Context) {
	var req addLiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	caller, err := world.ParseAccount(req.Account)
	if err != nil {
		badRequest(c, err)
		return
	}
	tok, err := s.world.Token(req.Token)
	if err != nil {
		s.fail(c, err)
		return
	}
	tokenAmount, err := model.ParseAmount(req.TokenAmount)
	if err != nil {
		badRequest(c, err)
		return
	}
	nativeAmount, err := model.ParseAmount(req.NativeAmount)
	if err != nil {
		badRequest(c, err)
		return
	}
	value := nativeAmount
	if req.Value != "" {
		if value, err = model.ParseAmount(req.Value); err != nil {
			badRequest(c, err)
			return
		}
	}

	res, err := s.world.Engine.AddLiquidity(c.Request.Context(), engine.Call{Caller: caller, Value: value}, tok.Address(), tokenAmount, nativeAmount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, addLiquidityResponse{
		PositionID:   res.PositionID.String(),
		Shares:       res.Shares.Dec(),
		TokenAmount:  res.TokenAmount.Dec(),
		NativeAmount: res.NativeAmount.Dec(),
		Seq:          res.Event.Seq,
	})
}

// handleGetPosition handles GET /v1/positions/:id
func (s *Server) handleGetPosition(c *gin.Context) {
	id, err := model.ParsePositionID(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	pos, err := s.world.Engine.PositionInfo(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp, err := s.positionResponse(pos)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleRemoveLiquidity handles POST /v1/positions/:id/remove
func (s *Server) handleRemoveLiquidity(c *gin.Context) {
	id, err := model.ParsePositionID(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	var req removeLiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	caller, err := world.ParseAccount(req.Account)
	if err != nil {
		badRequest(c, err)
		return
	}
	value, err := model.ParseAmount(req.Value)
	if err != nil {
		badRequest(c, err)
		return
	}

	res, err := s.world.Engine.RemoveLiquidity(c.Request.Context(), engine.Call{Caller: caller, Value: value}, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, removeLiquidityResponse{
		PositionID:   res.PositionID.String(),
		TokenAmount:  res.TokenAmount.Dec(),
		NativeAmount: res.NativeAmount.Dec(),
		Seq:          res.Event.Seq,
	})
}

// handleTransferPosition handles POST /v1/positions/:id/transfer
func (s *Server) handleTransferPosition(c *gin.Context) {
	id, err := model.ParsePositionID(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	var req transferPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	caller, err := world.ParseAccount(req.Account)
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := world.ParseAccount(req.To)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := s.world.Engine.TransferPosition(engine.Call{Caller: caller}, to, id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position_id": id.String(), "owner": to.Hex()})
}

// handleGetAccount handles GET /v1/accounts/:account
func (s *Server) handleGetAccount(c *gin.Context) {
	account, err := world.ParseAccount(c.Param("account"))
	if err != nil {
		badRequest(c, err)
		return
	}
	tokens := make(map[string]string)
	for _, tok := range s.world.Tokens.List() {
		tokens[tok.Address().Hex()] = tok.BalanceOf(account).Dec()
	}
	c.JSON(http.StatusOK, accountResponse{
		Account:   account.Hex(),
		Native:    s.world.Native.BalanceOf(account).Dec(),
		Tokens:    tokens,
		Positions: int(s.world.NFT.BalanceOf(account)),
	})
}

// handleDeployToken handles POST /v1/dev/tokens
func (s *Server) handleDeployToken(c *gin.Context) {
	var req deployTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	meta, err := world.ParseTokenSpec(req.Spec)
	if err != nil {
		badRequest(c, err)
		return
	}
	tok, err := s.world.DeployToken(meta)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tok.Meta())
}

// handleFund handles POST /v1/dev/fund
func (s *Server) handleFund(c *gin.Context) {
	var req fundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	account, err := world.ParseAccount(req.Account)
	if err != nil {
		badRequest(c, err)
		return
	}
	tokenAmount, err := model.ParseAmount(req.TokenAmount)
	if err != nil {
		badRequest(c, err)
		return
	}
	nativeAmount, err := model.ParseAmount(req.NativeAmount)
	if err != nil {
		badRequest(c, err)
		return
	}
	var tok *token.ERC20
	if req.Token != "" {
		if tok, err = s.world.Token(req.Token); err != nil {
			s.fail(c, err)
			return
		}
	} else if !tokenAmount.IsZero() {
		badRequest(c, fmt.Errorf("token_amount without token"))
		return
	}
	s.world.Fund(account, tok, tokenAmount, nativeAmount)
	c.JSON(http.StatusOK, gin.H{"account": account.Hex()})
}

// handleApprove handles POST /v1/dev/approve
func (s *Server) handleApprove(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	account, err := world.ParseAccount(req.Account)
	if err != nil {
		badRequest(c, err)
		return
	}
	tok, err := s.world.Token(req.Token)
	if err != nil {
		s.fail(c, err)
		return
	}
	spender := s.world.Engine.Address()
	if req.Spender != "" {
		if spender, err = world.ParseAccount(req.Spender); err != nil {
			badRequest(c, err)
			return
		}
	}
	amount := new(uint256.Int).SetAllOne()
	if req.Amount != "" {
		if amount, err = model.ParseAmount(req.Amount); err != nil {
			badRequest(c, err)
			return
		}
	}
	tok.Approve(account, spender, amount)
	c.JSON(http.StatusOK, gin.H{"account": account.Hex(), "spender": spender.Hex(), "amount": amount.Dec()})
}

func (s *Server) poolResponse(addr common.Address) (poolResponse, error) {
	info, err := s.world.Engine.PoolInfo(addr)
	if err != nil {
		return poolResponse{}, err
	}
	resp := poolResponse{
		Token:         addr.Hex(),
		Decimals:      model.NativeDecimals,
		TokenReserve:  info.TokenReserve.Dec(),
		NativeReserve: info.NativeReserve.Dec(),
		PriceRatio:    info.PriceRatio.Dec(),
	}
	if tok, err := s.world.Tokens.Lookup(addr); err == nil {
		resp.Symbol = tok.Meta().Symbol
		resp.Decimals = tok.Meta().Decimals
	}
	return resp, nil
}

func (s *Server) positionResponse(pos model.Position) (positionResponse, error) {
	claimToken, claimNative, err := s.world.Engine.BalanceOf(pos.ID)
	if err != nil {
		return positionResponse{}, err
	}
	return positionResponse{
		ID:            pos.ID.String(),
		Pool:          pos.ID.Pool.Hex(),
		Seq:           pos.ID.Seq,
		Owner:         pos.Owner.Hex(),
		DepositToken:  model.FormatAmount(pos.DepositToken),
		DepositNative: model.FormatAmount(pos.DepositNative),
		Liquidity:     model.FormatAmount(pos.Liquidity),
		Shares:        model.FormatAmount(pos.Shares),
		ClaimToken:    claimToken.Dec(),
		ClaimNative:   claimNative.Dec(),
		CreatedAt:     pos.CreatedAt,
	}, nil
}

// swapRequest resolves the textual fields of a swap. Errors wrapping a
// sentinel keep their status; anything else is a bad request.
func (s *Server) swapRequest(tokenRef, direction, kind, amount, bound string) (engine.SwapRequest, error) {
	tok, err := s.world.Token(tokenRef)
	if err != nil {
		return engine.SwapRequest{}, err
	}
	req := engine.SwapRequest{Token: tok.Address()}
	if req.Direction, err = engine.ParseDirection(direction); err != nil {
		return engine.SwapRequest{}, err
	}
	if req.Kind, err = engine.ParseKind(kind); err != nil {
		return engine.SwapRequest{}, err
	}
	if req.Amount, err = model.ParseAmount(amount); err != nil {
		return engine.SwapRequest{}, err
	}
	if bound != "" {
		if req.Bound, err = model.ParseAmount(bound); err != nil {
			return engine.SwapRequest{}, err
		}
	}
	return req, nil
}

func (s *Server) failRequest(c *gin.Context, err error) {
	if model.ErrorCode(err) == "internal" {
		badRequest(c, err)
		return
	}
	s.fail(c, err)
}
