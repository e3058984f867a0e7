package util

import (
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/otalab/spaces/dao/model"
	"github.com/otalab/spaces/pkg/config"
	"github.com/otalab/spaces/pkg/logutils"
)

type (
	JWTClaims struct {
		UserID       uint       `json:"ui"`
		Username     string     `json:"un"`
		RolePlatform model.Role `json:"rp"`
		jwt.RegisteredClaims
	}
	JWTMessage struct {
		UserID       uint       `json:"userID"`
		Username     string     `json:"username"`
		RolePlatform model.Role `json:"rolePlatform"` // Role in platform (e.g. guest, user, admin)
	}
)

type TokenManager struct {
	secretKey       string
	accessTokenTTL  int
	refreshTokenTTL int
}

var (
	once     sync.Once
	tokenMgr *TokenManager
)

func GetTokenMgr() *TokenManager {
	once.Do(func() {
		if tokenMgr != nil {
			return
		}
		tokenConfig := config.NewTokenConf()
		tokenMgr = NewTokenManager(tokenConfig.AccessTokenSecret,
			tokenConfig.AccessTokenExpiryHour,
			tokenConfig.RefreshTokenExpiryHour,
		)
	})
	return tokenMgr
}

// SetTokenMgr injects a manager before the first GetTokenMgr; tests use it
// to avoid reading the config file.
func SetTokenMgr(tm *TokenManager) {
	tokenMgr = tm
	once.Do(func() {})
}

func NewTokenManager(secretKey string, accessTokenTTL, refreshTokenTTL int) *TokenManager {
	return &TokenManager{
		secretKey,
		accessTokenTTL,
		refreshTokenTTL,
	}
}

func (tm *TokenManager) createToken(msg *JWTMessage, ttl int) (string, error) {
	expiresAt := time.Now().Add(time.Hour * time.Duration(ttl))

	claims := &JWTClaims{
		UserID:       msg.UserID,
		Username:     msg.Username,
		RolePlatform: msg.RolePlatform,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.secretKey))
}

// CreateTokens creates a new access token and a new refresh token
func (tm *TokenManager) CreateTokens(msg *JWTMessage) (
	accessToken string, refreshToken string, err error) {
	accessToken, err = tm.createToken(msg, tm.accessTokenTTL)
	if err != nil {
		logutils.Log.Error(err)
		return "", "", err
	}
	refreshToken, err = tm.createToken(msg, tm.refreshTokenTTL)
	if err != nil {
		logutils.Log.Error(err)
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (tm *TokenManager) CheckToken(requestToken string) (JWTMessage, error) {
	claims := JWTClaims{}
	_, err := jwt.ParseWithClaims(requestToken, &claims, func(_ *jwt.Token) (any, error) {
		return []byte(tm.secretKey), nil
	})
	return JWTMessage{
		UserID:       claims.UserID,
		Username:     claims.Username,
		RolePlatform: claims.RolePlatform,
	}, err
}
