package service

import (
	"context"
	"errors"
	"time"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/pubsub"
	"backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type CreateStaffRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=admin staff"`
}

type UpdateStaffRequest struct {
	Username string `json:"username"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone"`
	Role     string `json:"role" binding:"omitempty,oneof=admin staff"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// StaffResponse returns a staff member without exposing the password hash
type StaffResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type StaffService interface {
	CreateStaff(ctx context.Context, actor model.Actor, req CreateStaffRequest) (StaffResponse, error)
	Login(ctx context.Context, req LoginRequest) (TokenResponse, error)
	ListStaff(ctx context.Context, actor model.Actor, page, limit int) ([]StaffResponse, int64, error)
	UpdateStaff(ctx context.Context, actor model.Actor, id string, req UpdateStaffRequest) (StaffResponse, error)
	DeleteStaff(ctx context.Context, actor model.Actor, id string) error
}

type staffService struct {
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	broker    *pubsub.Broker
	jwtSecret []byte
}

func NewStaffService(
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	broker *pubsub.Broker,
	jwtSecret []byte,
) StaffService {
	return &staffService{
		userRepo:  userRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		broker:    broker,
		jwtSecret: jwtSecret,
	}
}

func (s *staffService) CreateStaff(ctx context.Context, actor model.Actor, req CreateStaffRequest) (StaffResponse, error) {
	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return StaffResponse{}, apperr.Conflict("username_taken", "username %q already exists", req.Username)
	}
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return StaffResponse{}, apperr.Conflict("email_taken", "email %q already exists", req.Email)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return StaffResponse{}, apperr.Store(err)
	}

	user := &model.User{
		ShopID:   actor.ShopID,
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: string(hashed),
		Role:     req.Role,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.userRepo.Create(txCtx, user); createErr != nil {
			return apperr.Store(createErr)
		}
		audit := &model.AuditLog{
			ShopID:     actor.ShopID,
			UserID:     &actor.UserID,
			Action:     model.ActionCreateStaff,
			EntityID:   user.ID.String(),
			EntityName: user.Username,
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return apperr.Store(auditErr)
		}
		return nil
	})
	if err != nil {
		return StaffResponse{}, err
	}

	s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntityStaff, EntityID: user.ID, EventType: pubsub.EventInsert})
	return toStaffResponse(user), nil
}

func (s *staffService) Login(ctx context.Context, req LoginRequest) (TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return TokenResponse{}, apperr.Authorization("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return TokenResponse{}, apperr.Authorization("invalid email or password")
	}

	claims := jwt.MapClaims{
		"sub":     user.ID.String(),
		"shop_id": user.ShopID.String(),
		"role":    user.Role,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return TokenResponse{}, apperr.Store(err)
	}

	return TokenResponse{Token: signed}, nil
}

func (s *staffService) ListStaff(ctx context.Context, actor model.Actor, page, limit int) ([]StaffResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	users, total, err := s.userRepo.List(ctx, actor.ShopID, page, limit)
	if err != nil {
		return nil, 0, apperr.Store(err)
	}

	result := make([]StaffResponse, 0, len(users))
	for i := range users {
		result = append(result, toStaffResponse(&users[i]))
	}
	return result, total, nil
}

func (s *staffService) UpdateStaff(ctx context.Context, actor model.Actor, id string, req UpdateStaffRequest) (StaffResponse, error) {
	user, err := s.findShopStaff(ctx, actor, id)
	if err != nil {
		return StaffResponse{}, err
	}

	if req.Username != "" {
		user.Username = req.Username
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.Role != "" {
		user.Role = req.Role
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.userRepo.Update(txCtx, user); updateErr != nil {
			return apperr.Store(updateErr)
		}
		audit := &model.AuditLog{
			ShopID:     actor.ShopID,
			UserID:     &actor.UserID,
			Action:     model.ActionUpdateStaff,
			EntityID:   user.ID.String(),
			EntityName: user.Username,
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return apperr.Store(auditErr)
		}
		return nil
	})
	if err != nil {
		return StaffResponse{}, err
	}

	s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntityStaff, EntityID: user.ID, EventType: pubsub.EventUpdate})
	return toStaffResponse(user), nil
}

func (s *staffService) DeleteStaff(ctx context.Context, actor model.Actor, id string) error {
	user, err := s.findShopStaff(ctx, actor, id)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if deleteErr := s.userRepo.Delete(txCtx, user.ID); deleteErr != nil {
			return apperr.Store(deleteErr)
		}
		audit := &model.AuditLog{
			ShopID:     actor.ShopID,
			UserID:     &actor.UserID,
			Action:     model.ActionDeleteStaff,
			EntityID:   user.ID.String(),
			EntityName: user.Username,
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return apperr.Store(auditErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntityStaff, EntityID: user.ID, EventType: pubsub.EventDelete})
	return nil
}

func (s *staffService) findShopStaff(ctx context.Context, actor model.Actor, id string) (*model.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation(apperr.CodeNotFound, "invalid user id: %v", err)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user", id)
		}
		return nil, apperr.Store(err)
	}
	if user.ShopID != actor.ShopID {
		return nil, apperr.Authorization("user %s does not belong to the actor's shop", id)
	}
	return user, nil
}

func toStaffResponse(u *model.User) StaffResponse {
	return StaffResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}
