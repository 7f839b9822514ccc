package service

import (
	"sync"
	"testing"
	"time"

	"github.com/flexprice/bookingpay/internal/api/dto"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/testutil"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PromotionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PromotionService
}

func TestPromotionService(t *testing.T) {
	suite.Run(t, new(PromotionServiceSuite))
}

func (s *PromotionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewPromotionService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *PromotionServiceSuite) createPromotion(req dto.CreatePromotionRequest) *dto.PromotionResponse {
	resp, err := s.service.CreatePromotion(s.GetContext(), req)
	s.Require().NoError(err)
	return resp
}

func (s *PromotionServiceSuite) TestCreatePromotion() {
	tests := []struct {
		name    string
		mutate  func(r *dto.CreatePromotionRequest)
		wantErr bool
	}{
		{
			name:   "valid percentage promotion",
			mutate: func(r *dto.CreatePromotionRequest) {},
		},
		{
			name: "percentage above 100",
			mutate: func(r *dto.CreatePromotionRequest) {
				r.Discount = decimal.NewFromInt(101)
			},
			wantErr: true,
		},
		{
			name: "fractional fixed discount",
			mutate: func(r *dto.CreatePromotionRequest) {
				r.DiscountType = types.DiscountTypeFixed
				r.Discount = decimal.RequireFromString("10.5")
			},
			wantErr: true,
		},
		{
			name: "end before start",
			mutate: func(r *dto.CreatePromotionRequest) {
				r.EndDate = r.StartDate.Add(-time.Minute)
			},
			wantErr: true,
		},
		{
			name: "unknown discount type",
			mutate: func(r *dto.CreatePromotionRequest) {
				r.DiscountType = "bogus"
			},
			wantErr: true,
		},
	}

	for i, tt := range tests {
		s.Run(tt.name, func() {
			req := percentagePromotionRequest("CODE"+string(rune('A'+i)), 10, 0)
			tt.mutate(&req)
			resp, err := s.service.CreatePromotion(s.GetContext(), req)
			if tt.wantErr {
				s.Error(err)
				s.True(ierr.IsValidation(err))
				return
			}
			s.NoError(err)
			s.Equal(types.PromotionStatusActive, resp.PromotionStatus)
			s.Equal(0, resp.UseCount)
		})
	}
}

func (s *PromotionServiceSuite) TestGetPromotion() {
	promo := s.createPromotion(percentagePromotionRequest("LOOKUP", 15, 3))

	got, err := s.service.GetPromotion(s.GetContext(), promo.ID)
	s.Require().NoError(err)
	s.Equal("LOOKUP", got.DiscountCode)
	s.Equal(3, got.MaxUsage)

	_, err = s.service.GetPromotion(s.GetContext(), "promo_missing")
	s.True(ierr.IsNotFound(err))

	_, err = s.service.GetPromotion(s.GetContext(), "")
	s.True(ierr.IsValidation(err))
}

func (s *PromotionServiceSuite) TestValidateAndReserve() {
	promo := s.createPromotion(percentagePromotionRequest("SAVE20", 20, 0))

	discount, err := s.service.ValidateAndReserve(s.GetContext(), reserveRequest("SAVE20", testClientID))
	s.Require().NoError(err)
	s.Equal(promo.ID, discount.PromotionID)
	s.NotEmpty(discount.PromotionUsageID)
	s.True(decimal.NewFromInt(2000).Equal(discount.DiscountAmount))
	s.Equal(1, getPromotion(&s.BaseServiceTestSuite, promo.ID).UseCount)

	usage, err := s.GetStores().PromotionUsageRepo.Get(s.GetContext(), discount.PromotionUsageID)
	s.Require().NoError(err)
	s.Equal(testClientID, usage.ClientID)
}

func (s *PromotionServiceSuite) TestValidateAndReserveErrors() {
	now := time.Now().UTC()

	expiredReq := percentagePromotionRequest("OLD", 10, 0)
	expiredReq.StartDate = now.Add(-48 * time.Hour)
	expiredReq.EndDate = now.Add(-24 * time.Hour)
	s.createPromotion(expiredReq)

	futureReq := percentagePromotionRequest("SOON", 10, 0)
	futureReq.StartDate = now.Add(time.Hour)
	futureReq.EndDate = now.Add(48 * time.Hour)
	s.createPromotion(futureReq)

	single := s.createPromotion(percentagePromotionRequest("ONCE", 10, 1))
	_, err := s.service.ValidateAndReserve(s.GetContext(), reserveRequest("ONCE", "client_first"))
	s.Require().NoError(err)

	tests := []struct {
		name  string
		req   dto.ReservePromotionRequest
		check func(error) bool
	}{
		{"unknown code", reserveRequest("NOPE", testClientID), ierr.IsNotFound},
		{"ended promotion", reserveRequest("OLD", testClientID), ierr.IsExpired},
		{"not yet started", reserveRequest("SOON", testClientID), ierr.IsExpired},
		{"usage cap reached", reserveRequest("ONCE", testClientID), ierr.IsExhausted},
		{"missing client", reserveRequest("ONCE", ""), ierr.IsValidation},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.ValidateAndReserve(s.GetContext(), tt.req)
			s.Error(err)
			s.True(tt.check(err), "unexpected error kind %s: %v", ierr.Kind(err), err)
		})
	}

	s.Equal(1, getPromotion(&s.BaseServiceTestSuite, single.ID).UseCount)
}

func (s *PromotionServiceSuite) TestSecondRedemptionBySameClientFails() {
	promo := s.createPromotion(percentagePromotionRequest("SAVE20", 20, 0))

	_, err := s.service.ValidateAndReserve(s.GetContext(), reserveRequest("SAVE20", testClientID))
	s.Require().NoError(err)

	_, err = s.service.ValidateAndReserve(s.GetContext(), reserveRequest("SAVE20", testClientID))
	s.Error(err)
	s.True(ierr.IsAlreadyUsed(err))
	s.Equal(1, getPromotion(&s.BaseServiceTestSuite, promo.ID).UseCount)
}

func (s *PromotionServiceSuite) TestExclusiveGroup() {
	first := percentagePromotionRequest("SPRING", 10, 0)
	first.ExclusiveGroup = "seasonal"
	second := percentagePromotionRequest("SUMMER", 15, 0)
	second.ExclusiveGroup = "seasonal"
	other := percentagePromotionRequest("LOYAL", 5, 0)

	s.createPromotion(first)
	summer := s.createPromotion(second)
	s.createPromotion(other)

	_, err := s.service.ValidateAndReserve(s.GetContext(), reserveRequest("SPRING", testClientID))
	s.Require().NoError(err)

	_, err = s.service.ValidateAndReserve(s.GetContext(), reserveRequest("SUMMER", testClientID))
	s.True(ierr.IsAlreadyUsed(err))
	s.Equal(0, getPromotion(&s.BaseServiceTestSuite, summer.ID).UseCount)

	// a promotion outside the group is unaffected
	_, err = s.service.ValidateAndReserve(s.GetContext(), reserveRequest("LOYAL", testClientID))
	s.NoError(err)

	// another client may still use the group
	_, err = s.service.ValidateAndReserve(s.GetContext(), reserveRequest("SUMMER", "client_other"))
	s.NoError(err)
}

func (s *PromotionServiceSuite) TestConcurrentReservationsRespectCap() {
	const (
		maxUsage = 5
		callers  = 20
	)
	promo := s.createPromotion(percentagePromotionRequest("RUSH", 10, maxUsage))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clientID := types.GenerateUUIDWithPrefix("client")
			_, err := s.service.ValidateAndReserve(s.GetContext(), reserveRequest("RUSH", clientID))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case ierr.IsExhausted(err):
				exhausted++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(maxUsage, succeeded)
	s.Equal(callers-maxUsage, exhausted)
	s.Equal(maxUsage, getPromotion(&s.BaseServiceTestSuite, promo.ID).UseCount)
}

func (s *PromotionServiceSuite) TestReleaseUsageKeepsUseCount() {
	promo := s.createPromotion(percentagePromotionRequest("SAVE20", 20, 0))
	discount, err := s.service.ValidateAndReserve(s.GetContext(), reserveRequest("SAVE20", testClientID))
	s.Require().NoError(err)

	s.NoError(s.service.ReleaseUsage(s.GetContext(), []string{discount.PromotionUsageID, "pusage_unknown"}))

	_, err = s.GetStores().PromotionUsageRepo.Get(s.GetContext(), discount.PromotionUsageID)
	s.True(ierr.IsNotFound(err))
	s.Equal(1, getPromotion(&s.BaseServiceTestSuite, promo.ID).UseCount)

	// the client may redeem again once the usage is gone
	_, err = s.service.ValidateAndReserve(s.GetContext(), reserveRequest("SAVE20", testClientID))
	s.NoError(err)
	s.Equal(2, getPromotion(&s.BaseServiceTestSuite, promo.ID).UseCount)
}

func (s *PromotionServiceSuite) TestReleaseUsageRestoresCapacity() {
	s.GetConfig().Billing.PromotionReleaseRestoresCapacity = true
	defer func() { s.GetConfig().Billing.PromotionReleaseRestoresCapacity = false }()

	promo := s.createPromotion(percentagePromotionRequest("ONCE", 20, 1))
	discount, err := s.service.ValidateAndReserve(s.GetContext(), reserveRequest("ONCE", testClientID))
	s.Require().NoError(err)

	s.NoError(s.service.ReleaseUsage(s.GetContext(), []string{discount.PromotionUsageID}))
	s.Equal(0, getPromotion(&s.BaseServiceTestSuite, promo.ID).UseCount)

	_, err = s.service.ValidateAndReserve(s.GetContext(), reserveRequest("ONCE", "client_other"))
	s.NoError(err)
}

func (s *PromotionServiceSuite) TestReleaseUsageEmpty() {
	s.NoError(s.service.ReleaseUsage(s.GetContext(), nil))
	s.NoError(s.service.ReleaseUsage(s.GetContext(), []string{""}))
}

func (s *PromotionServiceSuite) TestExpireEnded() {
	now := time.Now().UTC()
	endedReq := percentagePromotionRequest("OLD", 10, 0)
	endedReq.StartDate = now.Add(-48 * time.Hour)
	endedReq.EndDate = now.Add(-time.Hour)
	ended := s.createPromotion(endedReq)
	live := s.createPromotion(percentagePromotionRequest("LIVE", 10, 0))

	expired, err := s.service.ExpireEnded(s.GetContext(), now)
	s.Require().NoError(err)
	s.Require().Len(expired, 1)
	s.Equal(ended.ID, expired[0].ID)
	s.Equal(types.PromotionStatusExpired, getPromotion(&s.BaseServiceTestSuite, ended.ID).PromotionStatus)
	s.Equal(types.PromotionStatusActive, getPromotion(&s.BaseServiceTestSuite, live.ID).PromotionStatus)

	expired, err = s.service.ExpireEnded(s.GetContext(), now)
	s.NoError(err)
	s.Empty(expired)
}
