package api

import (
	"net/http"

	"github.com/cognitoemu/cognito-emu/internal/api/helpers"
	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/pool"
)

type groupWire struct {
	GroupName   string `json:"GroupName"`
	UserPoolId  string `json:"UserPoolId"`
	Description string `json:"Description,omitempty"`
	RoleArn     string `json:"RoleArn,omitempty"`
	Precedence  int    `json:"Precedence,omitempty"`
}

func toGroupWire(poolID string, g *pool.Group) groupWire {
	return groupWire{GroupName: g.GroupName, UserPoolId: poolID, Description: g.Description, RoleArn: g.RoleArn, Precedence: g.Precedence}
}

type createGroupRequest struct {
	UserPoolId  string `json:"UserPoolId"`
	GroupName   string `json:"GroupName"`
	Description string `json:"Description"`
	RoleArn     string `json:"RoleArn"`
	Precedence  int    `json:"Precedence"`
}

// CreateGroup adds a new named group to the pool.
func (s *Server) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	g := &pool.Group{GroupName: req.GroupName, Description: req.Description, RoleArn: req.RoleArn, Precedence: req.Precedence}
	if err := st.CreateGroup(g); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct {
		Group groupWire `json:"Group"`
	}{toGroupWire(req.UserPoolId, g)})
}

type groupRequest struct {
	UserPoolId string `json:"UserPoolId"`
	GroupName  string `json:"GroupName"`
}

// GetGroup returns a single group's configuration.
func (s *Server) GetGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	g, ok := st.GetGroup(req.GroupName)
	if !ok {
		helpers.RespondError(w, apperr.ErrResourceNotFound)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct {
		Group groupWire `json:"Group"`
	}{toGroupWire(req.UserPoolId, g)})
}

// DeleteGroup removes a group and its membership records.
func (s *Server) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	if err := st.DeleteGroup(req.GroupName); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}

type listGroupsRequest struct {
	UserPoolId string `json:"UserPoolId"`
	Limit      int    `json:"Limit"`
	NextToken  string `json:"NextToken"`
}

// ListGroups returns every group in the pool, ordered by precedence.
// The emulator does not paginate this listing (spec.md's pagination
// requirement is scoped to ListUsers); Limit/NextToken are accepted for
// wire compatibility but have no effect.
func (s *Server) ListGroups(w http.ResponseWriter, r *http.Request) {
	var req listGroupsRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	groups := st.ListGroups()
	out := make([]groupWire, len(groups))
	for i, g := range groups {
		out[i] = toGroupWire(req.UserPoolId, g)
	}
	helpers.RespondJSON(w, http.StatusOK, struct {
		Groups []groupWire `json:"Groups"`
	}{out})
}

type adminGroupMembershipRequest struct {
	UserPoolId string `json:"UserPoolId"`
	Username   string `json:"Username"`
	GroupName  string `json:"GroupName"`
}

// AdminAddUserToGroup adds username to the named group, idempotently.
func (s *Server) AdminAddUserToGroup(w http.ResponseWriter, r *http.Request) {
	var req adminGroupMembershipRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	if err := st.AddUserToGroup(req.GroupName, req.Username); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}

// AdminRemoveUserFromGroup removes username from the named group.
func (s *Server) AdminRemoveUserFromGroup(w http.ResponseWriter, r *http.Request) {
	var req adminGroupMembershipRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	if err := st.RemoveUserFromGroup(req.GroupName, req.Username); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}

type adminListGroupsForUserRequest struct {
	UserPoolId string `json:"UserPoolId"`
	Username   string `json:"Username"`
}

// AdminListGroupsForUser lists the groups a user belongs to.
func (s *Server) AdminListGroupsForUser(w http.ResponseWriter, r *http.Request) {
	var req adminListGroupsForUserRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	groups := st.ListUserGroupMembership(req.Username)
	out := make([]groupWire, len(groups))
	for i, g := range groups {
		out[i] = toGroupWire(req.UserPoolId, g)
	}
	helpers.RespondJSON(w, http.StatusOK, struct {
		Groups []groupWire `json:"Groups"`
	}{out})
}

type listUsersInGroupRequest struct {
	UserPoolId string `json:"UserPoolId"`
	GroupName  string `json:"GroupName"`
	Limit      int    `json:"Limit"`
	NextToken  string `json:"NextToken"`
}

// ListUsersInGroup resolves a group's membership list back to full user
// records.
func (s *Server) ListUsersInGroup(w http.ResponseWriter, r *http.Request) {
	var req listUsersInGroupRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	usernames, err := st.ListGroupMembership(req.GroupName)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	users := make([]userWire, 0, len(usernames))
	for _, uname := range usernames {
		if u, ok := st.GetUserByUsername(uname); ok {
			users = append(users, toUserWire(u))
		}
	}
	helpers.RespondJSON(w, http.StatusOK, struct {
		Users []userWire `json:"Users"`
	}{users})
}
