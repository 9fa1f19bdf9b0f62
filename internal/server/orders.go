package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	campaigndomain "github.com/promocast/promocast/internal/campaign/domain"
	orderdomain "github.com/promocast/promocast/internal/order/domain"
)

type createOrderRequest struct {
	UserID       int64   `json:"user_id" binding:"required"`
	DurationDays int     `json:"duration_days" binding:"required"`
	ChannelIDs   []int64 `json:"channel_ids" binding:"required"`
	PayerAddress string  `json:"payer_address"`
}

type orderResponse struct {
	ID                 string     `json:"id"`
	ReferenceCode      string     `json:"reference_code"`
	ReceivingAddress   string     `json:"receiving_address,omitempty"`
	DurationDays       int        `json:"duration_days"`
	ChannelIDs         []int64    `json:"channel_ids"`
	PostsPerDay        int        `json:"posts_per_day"`
	DiscountBps        int64      `json:"discount_bps"`
	ExpectedAmountNano int64      `json:"expected_amount_nano"`
	Status             string     `json:"status"`
	MatchedTxHash      *string    `json:"matched_tx_hash,omitempty"`
	MatchedAt          *time.Time `json:"matched_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	ExpiresAt          time.Time  `json:"expires_at"`
}

func (s *Server) orderResponse(order *orderdomain.Order) orderResponse {
	channels, _ := order.Channels()
	resp := orderResponse{
		ID:                 order.ID.String(),
		ReferenceCode:      order.ReferenceCode,
		DurationDays:       order.DurationDays,
		ChannelIDs:         channels,
		PostsPerDay:        order.PostsPerDay,
		DiscountBps:        order.DiscountBps,
		ExpectedAmountNano: order.ExpectedAmountNano,
		Status:             string(order.Status),
		MatchedTxHash:      order.MatchedTxHash,
		MatchedAt:          order.MatchedAt,
		CreatedAt:          order.CreatedAt,
		ExpiresAt:          order.ExpiresAt,
	}
	if order.Status == orderdomain.OrderStatusPending {
		resp.ReceivingAddress = s.cfg.PrimaryReceivingAddress()
	}
	return resp
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.orderSvc.CreateOrder(c.Request.Context(), orderdomain.CreateOrderRequest{
		UserID:       req.UserID,
		DurationDays: req.DurationDays,
		ChannelIDs:   req.ChannelIDs,
		PayerAddress: strings.TrimSpace(req.PayerAddress),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, s.orderResponse(order))
}

func (s *Server) GetOrderByCode(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.orderSvc.GetByCode(c.Request.Context(), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.orderResponse(order))
}

func (s *Server) CancelOrder(c *gin.Context) {
	order, err := s.lookupOrder(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	cancelled, err := s.orderSvc.Cancel(c.Request.Context(), order.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.orderResponse(cancelled))
}

func (s *Server) GetCampaignByOrder(c *gin.Context) {
	order, err := s.lookupOrder(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	campaign, err := s.campaignSvc.GetByOrderID(c.Request.Context(), order.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}

func (s *Server) ListCampaignPosts(c *gin.Context) {
	campaignID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	posts, err := s.campaignSvc.ListPosts(c.Request.Context(), campaignID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

type updatePostStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) UpdatePostStatus(c *gin.Context) {
	postID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req updatePostStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.campaignSvc.UpdatePostStatus(c.Request.Context(), postID, campaigndomain.PostStatus(req.Status)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// lookupOrder resolves the :code path segment, which carries a reference
// code for buyer-facing routes.
func (s *Server) lookupOrder(c *gin.Context) (*orderdomain.Order, error) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		return nil, ErrInvalidRequest
	}
	return s.orderSvc.GetByCode(c.Request.Context(), code)
}
