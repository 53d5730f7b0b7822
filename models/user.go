package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID              int        `gorm:"primary_key" json:"id"`
	Username        string     `gorm:"size:100;not null;uniqueIndex" json:"username"`
	Name            string     `gorm:"size:100;not null" json:"name"`
	Email           string     `gorm:"size:100" json:"email"`
	Password        string     `gorm:"size:255;not null" json:"-"`
	Role            Role       `gorm:"size:20;not null;index" json:"role"`
	BoardingHouseId int        `gorm:"index;not null;default:0" json:"boarding_house_id"`
	IsActive        *bool      `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt     *time.Time `json:"last_login_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username        string `json:"username" binding:"required,max=100"`
	Name            string `json:"name" binding:"required,max=100"`
	Email           string `json:"email" binding:"omitempty,email"`
	Password        string `json:"password"`
	Role            Role   `json:"role" binding:"required"`
	BoardingHouseId int    `json:"boarding_house_id"`
	IsActive        *bool  `json:"is_active"`
}

type LoginInfo struct {
	Token             string    `json:"token"`
	UserId            int       `json:"user_id"`
	Name              string    `json:"name"`
	Role              Role      `json:"role"`
	BoardingHouseId   int       `json:"boarding_house_id"`
	BoardingHouseName string    `json:"boarding_house_name"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// Session is what the redis session registry keeps per issued token.
type Session struct {
	UserId          int    `json:"user_id"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	Role            Role   `json:"role"`
	BoardingHouseId int    `json:"boarding_house_id"`
}

var errInvalidCredentials = fmt.Errorf("%w: invalid username or password", utils.ErrUnauthorized)

func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func sessionKey(tokenId string) string {
	return "Token:" + tokenId
}

func userSessionsKey(username string) string {
	return "Tokens:" + username
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	db := config.GetDB()
	username = strings.TrimSpace(username)

	var user User
	err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, errInvalidCredentials
	}
	if !user.Active() {
		return nil, fmt.Errorf("%w: user is disabled", utils.ErrUnauthorized)
	}

	result := LoginInfo{
		UserId:          user.ID,
		Name:            user.Name,
		Role:            user.Role,
		BoardingHouseId: user.BoardingHouseId,
	}
	if user.BoardingHouseId > 0 {
		var house BoardingHouse
		if err := db.WithContext(ctx).First(&house, user.BoardingHouseId).Error; err != nil {
			return nil, err
		}
		if house.IsActive != nil && !*house.IsActive {
			return nil, fmt.Errorf("%w: boarding house is deactivated", utils.ErrUnauthorized)
		}
		result.BoardingHouseName = house.Name
	} else if user.Role != RoleBoss {
		return nil, fmt.Errorf("%w: user is not assigned to a boarding house", utils.ErrUnauthorized)
	}

	token, expiresAt, err := utils.JwtGenerate(user.ID, string(user.Role), user.BoardingHouseId)
	if err != nil {
		return nil, err
	}
	claims, err := utils.ParseClaims(token)
	if err != nil {
		return nil, err
	}
	session := Session{
		UserId:          user.ID,
		Username:        user.Username,
		Name:            user.Name,
		Role:            user.Role,
		BoardingHouseId: user.BoardingHouseId,
	}
	if err := config.SetRedisObject(sessionKey(claims.Id), &session, time.Until(expiresAt)); err != nil {
		return nil, err
	}
	if err := config.AddRedisSet(userSessionsKey(user.Username), claims.Id); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		config.LogError(config.GetLogger(), "user.go", "Login", "update last_login_at", user.ID, err)
	}

	result.Token = token
	result.ExpiresAt = expiresAt
	return &result, nil
}

// Logout revokes the token's session.
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	claims, err := utils.ParseClaims(token)
	if err != nil {
		return false, err
	}
	if err := config.RemoveRedisKey(sessionKey(claims.Id)); err != nil {
		return false, err
	}
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, errors.New("user not found")
	}
	if err := config.RemoveRedisSetMember(userSessionsKey(username), claims.Id); err != nil {
		return false, err
	}
	return true, nil
}

// LoadSession resolves the session behind a validated token.
// Without redis the user row is read instead so deactivated users are still refused.
func LoadSession(ctx context.Context, claims *utils.JwtCustomClaim) (*Session, error) {
	if config.GetRedisDB() != nil {
		var session Session
		exists, err := config.GetRedisObject(sessionKey(claims.Id), &session)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: session expired", utils.ErrUnauthorized)
		}
		return &session, nil
	}

	var user User
	err := config.GetDB().WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
		Where("id = ?", claims.ID).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrUnauthorized
		}
		return nil, err
	}
	if !user.Active() {
		return nil, fmt.Errorf("%w: user is disabled", utils.ErrUnauthorized)
	}
	return &Session{
		UserId:          user.ID,
		Username:        user.Username,
		Name:            user.Name,
		Role:            user.Role,
		BoardingHouseId: user.BoardingHouseId,
	}, nil
}

// RevokeUserSessions drops every session of the user.
func RevokeUserSessions(username string) error {
	tokenIds, err := config.GetRedisSetMembers(userSessionsKey(username))
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(tokenIds)+1)
	for _, id := range tokenIds {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userSessionsKey(username))
	return config.RemoveRedisKey(keys...)
}

func GetCurrentUser(ctx context.Context) (*User, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, utils.ErrUnauthorized
	}
	return utils.FetchSingleModel[User](ctx, userId)
}

func ChangePassword(ctx context.Context, oldPassword string, newPassword string) error {
	user, err := GetCurrentUser(ctx)
	if err != nil {
		return err
	}
	if err := utils.ComparePassword(user.Password, oldPassword); err != nil {
		return utils.NewValidationError("current password is incorrect")
	}
	if err := utils.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}
	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(user).Update("password", string(hashed)).Error; err != nil {
		return err
	}
	return RevokeUserSessions(user.Username)
}

// users are managed by boss users (any house) or admins (their own house only)
func (input *NewUser) validate(ctx context.Context, id int) error {
	input.Username = strings.ToLower(strings.TrimSpace(input.Username))
	input.Name = strings.TrimSpace(input.Name)
	if !input.Role.IsValid() {
		return utils.NewValidationError("invalid role %q", input.Role)
	}

	isAdmin, _ := utils.GetIsAdminFromContext(ctx)
	if !isAdmin {
		boardingHouseId, err := requireBoardingHouseId(ctx)
		if err != nil {
			return err
		}
		if input.Role == RoleBoss {
			return fmt.Errorf("%w: only boss users can create boss users", utils.ErrForbidden)
		}
		if input.BoardingHouseId != 0 && input.BoardingHouseId != boardingHouseId {
			return fmt.Errorf("%w: cannot manage users of another boarding house", utils.ErrForbidden)
		}
		input.BoardingHouseId = boardingHouseId
	}
	if input.Role == RoleBoss {
		input.BoardingHouseId = 0
	} else {
		if input.BoardingHouseId <= 0 {
			return utils.NewValidationError("boarding house is required for role %s", input.Role)
		}
		if err := utils.ValidateResourceId[BoardingHouse](ctx, 0, input.BoardingHouseId); err != nil {
			return utils.NewValidationError("boarding house not found")
		}
	}
	if id == 0 || input.Password != "" {
		if err := utils.ValidatePasswordStrength(input.Password); err != nil {
			return err
		}
	}
	return utils.ValidateUnique[User](ctx, 0, "username", input.Username, id)
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		Username:        input.Username,
		Name:            input.Name,
		Email:           input.Email,
		Password:        string(hashed),
		Role:            input.Role,
		BoardingHouseId: input.BoardingHouseId,
		IsActive:        utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func UpdateUser(ctx context.Context, id int, input *NewUser) (*User, error) {
	user, err := fetchManagedUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"Username":        input.Username,
		"Name":            input.Name,
		"Email":           input.Email,
		"Role":            input.Role,
		"BoardingHouseId": input.BoardingHouseId,
	}
	if input.Password != "" {
		hashed, err := utils.HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		updates["Password"] = string(hashed)
	}
	if input.IsActive != nil {
		updates["IsActive"] = *input.IsActive
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	if input.Password != "" || (input.IsActive != nil && !*input.IsActive) || input.Role != user.Role {
		if err := RevokeUserSessions(user.Username); err != nil {
			config.LogError(config.GetLogger(), "user.go", "UpdateUser", "RevokeUserSessions", user.ID, err)
		}
	}
	return utils.FetchSingleModel[User](ctx, id)
}

// ListUsers lists the users visible to the caller.
func ListUsers(ctx context.Context) ([]*User, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Order("username")
	isAdmin, _ := utils.GetIsAdminFromContext(ctx)
	if !isAdmin {
		boardingHouseId, err := requireBoardingHouseId(ctx)
		if err != nil {
			return nil, err
		}
		q = q.Where("boarding_house_id = ?", boardingHouseId)
	} else if boardingHouseId := scopeBoardingHouseId(ctx); boardingHouseId > 0 {
		q = q.Where("boarding_house_id = ?", boardingHouseId)
	}
	var users []*User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func fetchManagedUser(ctx context.Context, id int) (*User, error) {
	user, err := utils.FetchSingleModel[User](ctx, id)
	if err != nil {
		return nil, err
	}
	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); isAdmin {
		return user, nil
	}
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	if user.BoardingHouseId != boardingHouseId || user.Role == RoleBoss {
		return nil, utils.ErrorRecordNotFound
	}
	return user, nil
}
