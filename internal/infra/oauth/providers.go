package oauth

import (
	"jwtauth/config"
	"jwtauth/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

type providerEndpoints struct {
	authURL     string
	tokenURL    string
	userInfoURL string
}

func (e providerEndpoints) override(cfg config.OAuthProviderConfig) providerEndpoints {
	if cfg.AuthURL != "" {
		e.authURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		e.tokenURL = cfg.TokenURL
	}
	if cfg.UserInfoURL != "" {
		e.userInfoURL = cfg.UserInfoURL
	}

	return e
}

var (
	googleDefaults = providerEndpoints{
		authURL:     "https://accounts.google.com/o/oauth2/v2/auth",
		tokenURL:    "https://oauth2.googleapis.com/token",
		userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
	kakaoDefaults = providerEndpoints{
		authURL:     "https://kauth.kakao.com/oauth/authorize",
		tokenURL:    "https://kauth.kakao.com/oauth/token",
		userInfoURL: "https://kapi.kakao.com/v2/user/me",
	}
	naverDefaults = providerEndpoints{
		authURL:     "https://nid.naver.com/oauth2.0/authorize",
		tokenURL:    "https://nid.naver.com/oauth2.0/token",
		userInfoURL: "https://openapi.naver.com/v1/nid/me",
	}
)

// normalizeGoogle reads the flat v2 userinfo payload:
// {"id", "email", "verified_email", "name", "picture"}.
func normalizeGoogle(body []byte) (*service.NormalizedUserInfo, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("google user info is not valid json")
	}

	fields := gjson.GetManyBytes(body, "id", "email", "verified_email", "name", "picture")

	return buildUserInfo(fields[0], verifiedEmailField(fields[1], fields[2]), fields[3], fields[4])
}

// normalizeKakao reads the nested v2 user/me payload. The numeric id is kept
// as its decimal string.
func normalizeKakao(body []byte) (*service.NormalizedUserInfo, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("kakao user info is not valid json")
	}

	fields := gjson.GetManyBytes(body,
		"id",
		"kakao_account.email",
		"kakao_account.is_email_verified",
		"kakao_account.profile.nickname",
		"kakao_account.profile.profile_image_url",
		"properties.nickname",
		"properties.profile_image",
	)

	nickname := fields[3]
	if nickname.String() == "" {
		nickname = fields[5]
	}
	avatar := fields[4]
	if avatar.String() == "" {
		avatar = fields[6]
	}

	return buildUserInfo(fields[0], verifiedEmailField(fields[1], fields[2]), nickname, avatar)
}

// normalizeNaver reads the enveloped nid/me payload:
// {"resultcode": "00", "message": "success", "response": {...}}.
func normalizeNaver(body []byte) (*service.NormalizedUserInfo, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("naver user info is not valid json")
	}

	fields := gjson.GetManyBytes(body,
		"resultcode",
		"message",
		"response.id",
		"response.email",
		"response.nickname",
		"response.profile_image",
	)

	if code := fields[0].String(); code != "" && code != "00" {
		return nil, errors.Errorf("naver user info failed: %s %s", code, fields[1].String())
	}

	return buildUserInfo(fields[2], fields[3], fields[4], fields[5])
}

// verifiedEmailField drops the email when the provider flags it unverified.
// An unverified address must never be used to link an existing account.
func verifiedEmailField(email, verified gjson.Result) gjson.Result {
	if verified.Exists() && !verified.Bool() {
		return gjson.Result{}
	}

	return email
}

func buildUserInfo(id, email, nickname, avatar gjson.Result) (*service.NormalizedUserInfo, error) {
	subject := id.String()
	if subject == "" {
		return nil, errors.New("user info is missing the subject id")
	}

	return &service.NormalizedUserInfo{
		ID:        subject,
		Email:     email.String(),
		Nickname:  nickname.String(),
		AvatarURL: avatar.String(),
	}, nil
}
