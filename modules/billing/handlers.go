package billing

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Kiranbanna12/setup-first-sub002/handler"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/jwt"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

type createRequest struct {
	PlanID  string     `json:"planId" validate:"required,max=64"`
	IsTrial bool       `json:"isTrial"`
	StartAt *time.Time `json:"startAt,omitempty"`
}

type createResponse struct {
	SubscriptionID uuid.UUID           `json:"subscriptionId"`
	ExternalRef    string              `json:"externalRef"`
	Status         subscription.Status `json:"status"`
	IsTrial        bool                `json:"isTrial"`
	AmountDue      subscription.Money  `json:"amountDue"`
	CheckoutURL    string              `json:"checkoutUrl,omitempty"`
}

func (m *Module) createSubscription(ctx handler.Context, req createRequest) handler.Response {
	res, err := m.svc.CreateSubscription(ctx, subscription.CreateRequest{
		Profile: profile(ctx),
		PlanID:  req.PlanID,
		IsTrial: req.IsTrial,
		StartAt: req.StartAt,
	})
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(createResponse{
		SubscriptionID: res.Subscription.ID,
		ExternalRef:    res.ExternalRef,
		Status:         res.Subscription.Status,
		IsTrial:        res.Subscription.IsTrial,
		AmountDue:      res.AmountDue,
		CheckoutURL:    res.CheckoutURL,
	}, handler.WithJSONStatus(http.StatusCreated))
}

type verifyRequest struct {
	OrderRef        string `json:"orderRef" validate:"omitempty,max=128"`
	PaymentRef      string `json:"paymentRef" validate:"required,max=128"`
	SubscriptionRef string `json:"subscriptionRef" validate:"omitempty,max=128"`
	Signature       string `json:"signature" validate:"required,hexadecimal"`
	IsResume        bool   `json:"isResume"`
	SubscriptionID  string `json:"subscriptionId" validate:"omitempty,uuid"`
	IsTrial         bool   `json:"isTrial"`
	PlanID          string `json:"planId" validate:"omitempty,max=64"`
}

type outcomeResponse struct {
	Success         bool                `json:"success"`
	Message         string              `json:"message"`
	EffectiveStatus subscription.Status `json:"effectiveStatus,omitempty"`
}

func (m *Module) verifyPayment(ctx handler.Context, req verifyRequest) handler.Response {
	var id uuid.UUID
	if req.SubscriptionID != "" {
		id = uuid.MustParse(req.SubscriptionID) // validated as a uuid
	}
	res, err := m.svc.VerifyPayment(ctx, profile(ctx), subscription.VerifyRequest{
		OrderRef:        req.OrderRef,
		PaymentRef:      req.PaymentRef,
		SubscriptionRef: req.SubscriptionRef,
		Signature:       req.Signature,
		SubscriptionID:  id,
		IsResume:        req.IsResume,
		IsTrial:         req.IsTrial,
		PlanID:          req.PlanID,
	})
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(outcomeResponse{Success: true, Message: res.Message})
}

type cancelRequest struct {
	ID         uuid.UUID `json:"-" path:"id"`
	AtCycleEnd *bool     `json:"atCycleEnd"`
}

func (m *Module) cancel(ctx handler.Context, req cancelRequest) handler.Response {
	atCycleEnd := req.AtCycleEnd == nil || *req.AtCycleEnd
	sub, err := m.svc.Cancel(ctx, jwt.UserID(ctx), req.ID, atCycleEnd)
	if err != nil {
		return m.fail(ctx, err)
	}

	msg := "Subscription cancelled"
	if sub.Status == subscription.StatusCancelling {
		msg = "Subscription will end on " + sub.EndDate.UTC().Format(time.DateOnly)
	}
	return handler.JSON(outcomeResponse{Success: true, Message: msg, EffectiveStatus: sub.Status})
}

type resumeRequest struct {
	ID              uuid.UUID `json:"-" path:"id"`
	PaymentRef      string    `json:"paymentRef" validate:"required,max=128"`
	OrderRef        string    `json:"orderRef" validate:"omitempty,max=128"`
	SubscriptionRef string    `json:"subscriptionRef" validate:"omitempty,max=128"`
	Signature       string    `json:"signature" validate:"required,hexadecimal"`
}

func (m *Module) resume(ctx handler.Context, req resumeRequest) handler.Response {
	res, err := m.svc.VerifyPayment(ctx, profile(ctx), subscription.VerifyRequest{
		OrderRef:        req.OrderRef,
		PaymentRef:      req.PaymentRef,
		SubscriptionRef: req.SubscriptionRef,
		Signature:       req.Signature,
		SubscriptionID:  req.ID,
		IsResume:        true,
	})
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(outcomeResponse{Success: true, Message: res.Message, EffectiveStatus: res.Subscription.Status})
}

type entitlementResponse struct {
	SubscriptionActive bool              `json:"subscriptionActive"`
	Tier               subscription.Tier `json:"tier"`
	PlanRef            string            `json:"planRef,omitempty"`
	EndDate            *time.Time        `json:"endDate,omitempty"`
}

func (m *Module) entitlement(ctx handler.Context, _ struct{}) handler.Response {
	e, err := m.svc.Entitlement(ctx, jwt.UserID(ctx))
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(entitlementResponse{
		SubscriptionActive: e.SubscriptionActive,
		Tier:               e.Tier,
		PlanRef:            e.PlanRef,
		EndDate:            e.EndDate,
	})
}

type reconcileResponse struct {
	ExpiredCount int  `json:"expiredCount"`
	WarnedCount  int  `json:"warnedCount"`
	Skipped      bool `json:"skipped,omitempty"`
}

func (m *Module) reconcile(ctx handler.Context, _ struct{}) handler.Response {
	res, err := m.sweeper.Sweep(ctx)
	if err != nil {
		return m.fail(ctx, err)
	}
	m.log.InfoContext(ctx, "reconcile triggered",
		logger.Event("reconcile"),
		slog.Int("expired", res.Expired),
		slog.Int("warned", res.Warned),
		slog.Bool("skipped", res.Skipped),
	)
	return handler.JSON(reconcileResponse{ExpiredCount: res.Expired, WarnedCount: res.Warned, Skipped: res.Skipped})
}
