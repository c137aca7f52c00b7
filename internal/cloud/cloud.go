// Package cloud is the boundary to the vendor cloud: it reads identity out of
// bearer tokens, knows the regional hosts, classifies login responses into
// named conditions, and fetches task history for print-job enrichment.
//
// Login itself (email, password, verification codes) is driven by the host;
// this package only interprets what the cloud sends back.
package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RegionChina selects the mainland China hosts; every other region uses the
// global ones.
const RegionChina = "china"

var (
	ErrCloudflareBlocked         = errors.New("cloud: request blocked by edge protection")
	ErrVerificationCodeRequired  = errors.New("cloud: email verification code required")
	ErrVerificationCodeExpired   = errors.New("cloud: verification code expired")
	ErrVerificationCodeIncorrect = errors.New("cloud: verification code incorrect")
	ErrTFARequired               = errors.New("cloud: two-factor code required")
	ErrUnauthorized              = errors.New("cloud: unauthorized")
)

// APIBase returns the REST API root for a region.
func APIBase(region string) string {
	if strings.EqualFold(region, RegionChina) {
		return "https://api.bambulab.cn"
	}
	return "https://api.bambulab.com"
}

// MQTTHost returns the cloud broker host for a region.
func MQTTHost(region string) string {
	if strings.EqualFold(region, RegionChina) {
		return "cn.mqtt.bambulab.com"
	}
	return "us.mqtt.bambulab.com"
}

// UsernameFromToken extracts the "username" claim (u_<digits>) from a bearer
// token. The signature is not checked; the broker does that.
func UsernameFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	name, ok := claims["username"].(string)
	if !ok || name == "" {
		return "", errors.New("token has no username claim")
	}
	return name, nil
}

// LoginResult is the usable part of a login response.
type LoginResult struct {
	AccessToken string
	TFAKey      string
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	LoginType   string `json:"loginType"`
	TFAKey      string `json:"tfaKey"`
	Code        int    `json:"code"`
}

// ClassifyLoginResponse maps a raw login response onto a token or one of the
// named login conditions. A two-factor challenge returns ErrTFARequired along
// with the key needed for the follow-up request.
func ClassifyLoginResponse(status int, body []byte) (LoginResult, error) {
	if status == http.StatusForbidden && strings.Contains(strings.ToLower(string(body)), "cloudflare") {
		return LoginResult{}, ErrCloudflareBlocked
	}

	var resp loginResponse
	decodeErr := json.Unmarshal(body, &resp)

	switch {
	case status == http.StatusBadRequest && decodeErr == nil && resp.Code == 1:
		return LoginResult{}, ErrVerificationCodeExpired
	case status == http.StatusBadRequest && decodeErr == nil && resp.Code == 2:
		return LoginResult{}, ErrVerificationCodeIncorrect
	case status == http.StatusUnauthorized:
		return LoginResult{}, ErrUnauthorized
	case status >= 400:
		return LoginResult{}, fmt.Errorf("login returned %d", status)
	case decodeErr != nil:
		return LoginResult{}, fmt.Errorf("decode login response: %w", decodeErr)
	}

	if resp.AccessToken != "" {
		return LoginResult{AccessToken: resp.AccessToken}, nil
	}
	switch resp.LoginType {
	case "verifyCode":
		return LoginResult{}, ErrVerificationCodeRequired
	case "tfa":
		return LoginResult{TFAKey: resp.TFAKey}, ErrTFARequired
	}
	return LoginResult{}, fmt.Errorf("unrecognized login response (loginType %q)", resp.LoginType)
}

// DeviceType normalizes a cloud product name such as "X1 Carbon" or
// "P1S" into a device type string.
func DeviceType(productName string) string {
	if productName == "X1 Carbon" {
		return "X1C"
	}
	return strings.ReplaceAll(productName, " ", "")
}
