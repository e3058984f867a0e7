package config

type TokenConf struct {
	AccessTokenExpiryHour  int
	RefreshTokenExpiryHour int
	AccessTokenSecret      string
}

func NewTokenConf() *TokenConf {
	conf := GetConfig()
	tokenConf := &TokenConf{
		AccessTokenExpiryHour:  conf.Auth.AccessTokenExpiryHour,
		RefreshTokenExpiryHour: conf.Auth.RefreshTokenExpiryHour,
		AccessTokenSecret:      conf.Auth.AccessTokenSecret,
	}
	if tokenConf.AccessTokenExpiryHour == 0 {
		tokenConf.AccessTokenExpiryHour = 1
	}
	if tokenConf.RefreshTokenExpiryHour == 0 {
		tokenConf.RefreshTokenExpiryHour = 168
	}
	return tokenConf
}
