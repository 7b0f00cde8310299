package api

import (
	"net/http"

	"github.com/cognitoemu/cognito-emu/internal/api/helpers"
	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/pool"
)

type userPoolWire struct {
	Id                     string               `json:"Id"`
	Name                   string               `json:"Name"`
	MfaConfiguration       string               `json:"MfaConfiguration"`
	Policies               policiesWire         `json:"Policies"`
	AutoVerifiedAttributes []string             `json:"AutoVerifiedAttributes,omitempty"`
	SchemaAttributes       []pool.SchemaAttribute `json:"SchemaAttributes,omitempty"`
	LambdaConfig           pool.LambdaConfig    `json:"LambdaConfig,omitempty"`
}

type policiesWire struct {
	PasswordPolicy pool.PasswordPolicy `json:"PasswordPolicy"`
}

func toUserPoolWire(p pool.UserPool) userPoolWire {
	return userPoolWire{
		Id:                     p.Id,
		Name:                   p.Name,
		MfaConfiguration:       string(p.MFAConfiguration),
		Policies:               policiesWire{PasswordPolicy: p.PasswordPolicy},
		AutoVerifiedAttributes: p.AutoVerifiedAttributes,
		SchemaAttributes:       p.SchemaAttributes,
		LambdaConfig:           p.LambdaConfig,
	}
}

type createUserPoolRequest struct {
	PoolName               string                  `json:"PoolName"`
	Policies               policiesWire            `json:"Policies"`
	MfaConfiguration       string                  `json:"MfaConfiguration"`
	AutoVerifiedAttributes []string                `json:"AutoVerifiedAttributes"`
	Schema                 []pool.SchemaAttribute  `json:"Schema"`
	LambdaConfig           pool.LambdaConfig       `json:"LambdaConfig"`
}

// CreateUserPool provisions a brand-new pool, persisting its
// configuration document immediately (spec.md §4.5/§6).
func (s *Server) CreateUserPool(w http.ResponseWriter, r *http.Request) {
	var req createUserPoolRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	st, err := s.Facade.CreateUserPool(pool.UserPool{
		Name:                   req.PoolName,
		MFAConfiguration:       pool.MFAConfiguration(req.MfaConfiguration),
		PasswordPolicy:         req.Policies.PasswordPolicy,
		AutoVerifiedAttributes: req.AutoVerifiedAttributes,
		SchemaAttributes:       req.Schema,
		LambdaConfig:           req.LambdaConfig,
	})
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct {
		UserPool userPoolWire `json:"UserPool"`
	}{toUserPoolWire(st.Pool())})
}

type describeUserPoolRequest struct {
	UserPoolId string `json:"UserPoolId"`
}

// DescribeUserPool returns a pool's configuration document.
func (s *Server) DescribeUserPool(w http.ResponseWriter, r *http.Request) {
	var req describeUserPoolRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct {
		UserPool userPoolWire `json:"UserPool"`
	}{toUserPoolWire(st.Pool())})
}

type appClientWire struct {
	ClientId                string   `json:"ClientId"`
	UserPoolId              string   `json:"UserPoolId"`
	ClientName              string   `json:"ClientName"`
	ExplicitAuthFlows       []string `json:"ExplicitAuthFlows,omitempty"`
	AccessTokenValidity     int      `json:"AccessTokenValidity,omitempty"`
	IdTokenValidity         int      `json:"IdTokenValidity,omitempty"`
	RefreshTokenValidity    int      `json:"RefreshTokenValidity,omitempty"`
}

func toAppClientWire(c *pool.AppClient) appClientWire {
	return appClientWire{
		ClientId:             c.ClientId,
		UserPoolId:           c.UserPoolId,
		ClientName:           c.ClientName,
		ExplicitAuthFlows:    c.ExplicitAuthFlows,
		AccessTokenValidity:  c.AccessTokenValiditySec,
		IdTokenValidity:      c.IdTokenValiditySec,
		RefreshTokenValidity: c.RefreshTokenValiditySec,
	}
}

type createUserPoolClientRequest struct {
	UserPoolId              string   `json:"UserPoolId"`
	ClientName              string   `json:"ClientName"`
	ExplicitAuthFlows       []string `json:"ExplicitAuthFlows"`
	ReadAttributes          []string `json:"ReadAttributes"`
	WriteAttributes         []string `json:"WriteAttributes"`
	AccessTokenValidity     int      `json:"AccessTokenValidity"`
	IdTokenValidity         int      `json:"IdTokenValidity"`
	RefreshTokenValidity    int      `json:"RefreshTokenValidity"`
}

// CreateUserPoolClient registers a new app client under a pool and
// indexes it for InitiateAuth's client-id lookup (spec.md §4.5).
func (s *Server) CreateUserPoolClient(w http.ResponseWriter, r *http.Request) {
	var req createUserPoolClientRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	c, err := s.Facade.CreateUserPoolClient(req.UserPoolId, &pool.AppClient{
		ClientName:              req.ClientName,
		ExplicitAuthFlows:       req.ExplicitAuthFlows,
		ReadAttributes:          req.ReadAttributes,
		WriteAttributes:         req.WriteAttributes,
		AccessTokenValiditySec:  req.AccessTokenValidity,
		IdTokenValiditySec:      req.IdTokenValidity,
		RefreshTokenValiditySec: req.RefreshTokenValidity,
	})
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct {
		UserPoolClient appClientWire `json:"UserPoolClient"`
	}{toAppClientWire(c)})
}

type describeUserPoolClientRequest struct {
	UserPoolId string `json:"UserPoolId"`
	ClientId   string `json:"ClientId"`
}

// DescribeUserPoolClient returns a single app client's configuration.
func (s *Server) DescribeUserPoolClient(w http.ResponseWriter, r *http.Request) {
	var req describeUserPoolClientRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	c, ok := st.GetClient(req.ClientId)
	if !ok {
		helpers.RespondError(w, apperr.ErrResourceNotFound)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct {
		UserPoolClient appClientWire `json:"UserPoolClient"`
	}{toAppClientWire(c)})
}
