package handler

import (
	"anonchat/backend/internal/config"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	jwt "github.com/golang-jwt/jwt/v5"
)

var errInvalidToken = errors.New("invalid token")

// generateJWT генерує JWT з анонімним ID
func (h *Handler) generateJWT(anonID string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"anon_id": anonID,
		"exp":     now.Add(config.AnonTokenTTL).Unix(),
		"iss":     config.AnonTokenIssuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

// validateAndGetAnonID checks signature, issuer and expiry and returns the anon_id claim.
func (h *Handler) validateAndGetAnonID(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return h.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(config.AnonTokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidToken
	}
	anonID, _ := claims["anon_id"].(string)
	if _, err := uuid.Parse(anonID); err != nil {
		return "", fmt.Errorf("%w: bad anon_id", errInvalidToken)
	}
	return anonID, nil
}

// GetAnonID створює AnonID та повертає JWT
func (h *Handler) GetAnonID(c *gin.Context) {
	anonUUID, err := uuid.NewRandom()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create anon id"})
		return
	}
	anonID := anonUUID.String()

	token, err := h.generateJWT(anonID, time.Now())
	if err != nil {
		h.Log.Error("failed to sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID})
}
