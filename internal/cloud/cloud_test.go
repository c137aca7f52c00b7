package cloud

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return tok
}

func TestUsernameFromToken(t *testing.T) {
	name, err := UsernameFromToken(signedToken(t, jwt.MapClaims{"username": "u_1234567"}))
	require.NoError(t, err)
	assert.Equal(t, "u_1234567", name)

	_, err = UsernameFromToken(signedToken(t, jwt.MapClaims{"sub": "x"}))
	assert.Error(t, err)

	_, err = UsernameFromToken("not-a-token")
	assert.Error(t, err)
}

func TestRegionalHosts(t *testing.T) {
	tests := []struct {
		region   string
		api      string
		mqttHost string
	}{
		{"global", "https://api.bambulab.com", "us.mqtt.bambulab.com"},
		{"", "https://api.bambulab.com", "us.mqtt.bambulab.com"},
		{"China", "https://api.bambulab.cn", "cn.mqtt.bambulab.com"},
	}
	for _, tt := range tests {
		if got := APIBase(tt.region); got != tt.api {
			t.Errorf("APIBase(%q) = %q, want %q", tt.region, got, tt.api)
		}
		if got := MQTTHost(tt.region); got != tt.mqttHost {
			t.Errorf("MQTTHost(%q) = %q, want %q", tt.region, got, tt.mqttHost)
		}
	}
}

func TestClassifyLoginResponse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		want    LoginResult
	}{
		{"token", 200, `{"accessToken": "abc"}`, nil, LoginResult{AccessToken: "abc"}},
		{"cloudflare", 403, `<html>Attention Required! | Cloudflare</html>`, ErrCloudflareBlocked, LoginResult{}},
		{"verify code", 200, `{"accessToken": "", "loginType": "verifyCode"}`, ErrVerificationCodeRequired, LoginResult{}},
		{"tfa", 200, `{"loginType": "tfa", "tfaKey": "k1"}`, ErrTFARequired, LoginResult{TFAKey: "k1"}},
		{"code expired", 400, `{"code": 1}`, ErrVerificationCodeExpired, LoginResult{}},
		{"code incorrect", 400, `{"code": 2}`, ErrVerificationCodeIncorrect, LoginResult{}},
		{"unauthorized", 401, ``, ErrUnauthorized, LoginResult{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyLoginResponse(tt.status, []byte(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyLoginResponse_Unrecognized(t *testing.T) {
	_, err := ClassifyLoginResponse(200, []byte(`{"loginType": "sms"}`))
	require.Error(t, err)
	for _, sentinel := range []error{ErrCloudflareBlocked, ErrVerificationCodeRequired, ErrTFARequired, ErrUnauthorized} {
		assert.NotErrorIs(t, err, sentinel)
	}

	_, err = ClassifyLoginResponse(400, []byte(`{"code": 9}`))
	assert.Error(t, err)
	_, err = ClassifyLoginResponse(200, []byte(`not json`))
	assert.Error(t, err)
}

func TestDeviceType(t *testing.T) {
	tests := map[string]string{
		"X1 Carbon": "X1C",
		"P1S":       "P1S",
		"A1 mini":   "A1mini",
	}
	for in, want := range tests {
		if got := DeviceType(in); got != want {
			t.Errorf("DeviceType(%q) = %q, want %q", in, got, want)
		}
	}
}
