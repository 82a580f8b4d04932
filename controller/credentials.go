package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/httperr"
	"github.com/relaygate/core/quota"
	"github.com/relaygate/core/token"
)

// Credentials implements the operator-facing /api/{vendor}/credentials CRUD
// surface plus its lifecycle sub-routes (batch-import, refresh, test, usage,
// and the error-table restore path), against credential.Store directly
// rather than through the selector (the selector is a read-only consumer of
// the pool these handlers mutate).
type Credentials struct {
	Store     credential.Store
	Refresher *token.Refresher
	Quota     *quota.Refresher
}

func vendorParam(c *gin.Context) credential.Vendor {
	return credential.Vendor(c.Param("vendor"))
}

func idParam(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, errs.ClientError("invalid id: " + c.Param("id"))
	}
	return id, nil
}

func writeErr(c *gin.Context, err error) {
	httperr.WriteJSON(c, httperr.SchemaOpenAI, err)
}

// List handles GET /api/{vendor}/credentials.
func (h *Credentials) List(c *gin.Context) {
	creds, err := h.Store.GetAll(c.Request.Context(), vendorParam(c))
	if err != nil {
		writeErr(c, errs.Wrap(errs.KindUpstreamTransient, err, "list credentials"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": creds})
}

// credentialInput is the JSON body shared by Create/Update/batch-import
// entries; fields not relevant to the target vendor are simply left zero.
type credentialInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ProfileArn   string `json:"profileArn"`
	ProjectId    string `json:"projectId"`
	Region       string `json:"region"`
	ClientId     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	APIBaseURL   string `json:"apiBaseUrl"`
	Weight       int    `json:"weight"`
	IsActive     *bool  `json:"isActive"`
}

func (in credentialInput) toCredential(vendor credential.Vendor) *credential.Credential {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	weight := in.Weight
	if weight <= 0 {
		weight = 1
	}
	return &credential.Credential{
		Vendor:       vendor,
		Name:         in.Name,
		Email:        in.Email,
		RefreshToken: in.RefreshToken,
		ProfileArn:   in.ProfileArn,
		ProjectId:    in.ProjectId,
		Region:       in.Region,
		ClientId:     in.ClientId,
		ClientSecret: in.ClientSecret,
		APIBaseURL:   in.APIBaseURL,
		Weight:       weight,
		IsActive:     active,
	}
}

// Create handles POST /api/{vendor}/credentials.
func (h *Credentials) Create(c *gin.Context) {
	var in credentialInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeErr(c, errs.ClientError("decode credential: "+err.Error()))
		return
	}
	cred := in.toCredential(vendorParam(c))
	if err := h.Store.Add(c.Request.Context(), cred); err != nil {
		writeErr(c, classifyStoreError(err))
		return
	}
	c.JSON(http.StatusCreated, cred)
}

// BatchImport handles POST /api/{vendor}/credentials/batch-import: best-effort
// per-entry, so one malformed or duplicate credential doesn't abort the rest.
func (h *Credentials) BatchImport(c *gin.Context) {
	var in []credentialInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeErr(c, errs.ClientError("decode batch import: "+err.Error()))
		return
	}
	vendor := vendorParam(c)

	type result struct {
		Name  string `json:"name,omitempty"`
		Id    int    `json:"id,omitempty"`
		Error string `json:"error,omitempty"`
	}
	results := make([]result, 0, len(in))
	for _, item := range in {
		cred := item.toCredential(vendor)
		if err := h.Store.Add(c.Request.Context(), cred); err != nil {
			results = append(results, result{Name: item.Name, Error: err.Error()})
			continue
		}
		results = append(results, result{Name: item.Name, Id: cred.Id})
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Update handles PUT /api/{vendor}/credentials/{id}.
func (h *Credentials) Update(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	existing, err := h.Store.GetById(c.Request.Context(), id)
	if err != nil {
		writeErr(c, classifyStoreError(err))
		return
	}

	var in credentialInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeErr(c, errs.ClientError("decode credential: "+err.Error()))
		return
	}
	updated := in.toCredential(existing.Vendor)
	updated.Id = existing.Id
	updated.AccessToken = existing.AccessToken
	updated.ExpiresAt = existing.ExpiresAt
	updated.QuotaLimit, updated.QuotaUsed = existing.QuotaLimit, existing.QuotaUsed
	updated.RateLimits = existing.RateLimits

	if err := h.Store.Update(c.Request.Context(), updated); err != nil {
		writeErr(c, classifyStoreError(err))
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /api/{vendor}/credentials/{id}.
func (h *Credentials) Delete(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := h.Store.Delete(c.Request.Context(), id); err != nil {
		writeErr(c, classifyStoreError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// Refresh handles POST /api/{vendor}/credentials/{id}/refresh: force a token
// exchange regardless of the credential's current expiry.
func (h *Credentials) Refresh(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	cred, err := h.Store.GetById(c.Request.Context(), id)
	if err != nil {
		writeErr(c, classifyStoreError(err))
		return
	}
	accessToken, err := h.Refresher.ForceRefresh(c.Request.Context(), cred)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessTokenPrefix": previewToken(accessToken)})
}

// Test handles POST /api/{vendor}/credentials/{id}/test: verifies the
// credential can still produce a valid access token. Vendor-specific
// end-to-end verification beyond a token exchange is out of this gateway's
// scope; a successful refresh is the connectivity signal every vendor here
// shares.
func (h *Credentials) Test(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	cred, err := h.Store.GetById(c.Request.Context(), id)
	if err != nil {
		writeErr(c, classifyStoreError(err))
		return
	}
	if _, err := h.Refresher.GetValidAccessToken(c.Request.Context(), cred); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Usage handles GET /api/{vendor}/credentials/{id}/usage: an on-demand probe,
// bypassing the background refresher's persisted snapshot.
func (h *Credentials) Usage(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	cred, err := h.Store.GetById(c.Request.Context(), id)
	if err != nil {
		writeErr(c, classifyStoreError(err))
		return
	}
	limit, used, err := h.Quota.ProbeOne(c.Request.Context(), cred.Vendor, cred)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"limit": limit, "used": used})
}

// ListErrors handles GET /api/{vendor}/credentials/errors: the quarantine
// table the data model names alongside the active credential pool.
func (h *Credentials) ListErrors(c *gin.Context) {
	errored, err := h.Store.ListErrors(c.Request.Context(), vendorParam(c))
	if err != nil {
		writeErr(c, errs.Wrap(errs.KindUpstreamTransient, err, "list error credentials"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": errored})
}

// RestoreError handles POST /api/{vendor}/credentials/errors/{id}/restore:
// moves a quarantined credential back into the active pool, optionally with
// a freshly obtained refresh token.
func (h *Credentials) RestoreError(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = c.ShouldBindJSON(&body)

	restored, err := h.Store.RestoreFromError(c.Request.Context(), id, body.RefreshToken)
	if err != nil {
		writeErr(c, classifyStoreError(err))
		return
	}
	c.JSON(http.StatusOK, restored)
}

func classifyStoreError(err error) error {
	switch err.(type) {
	case *credential.DuplicateCredential:
		return errs.ClientError(err.Error())
	case *credential.StoreUnavailable:
		return errs.Wrap(errs.KindUpstreamTransient, err, "credential store unavailable")
	}
	if err == credential.ErrNotFound {
		return errs.ClientError("credential not found")
	}
	return errs.Wrap(errs.KindUpstreamTransient, err, "credential store error")
}

func previewToken(tok string) string {
	if len(tok) <= 8 {
		return "***"
	}
	return tok[:4] + "..." + tok[len(tok)-4:]
}
