package handlers

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/service"
)

// ProfileHandler handles encoding profile API endpoints.
type ProfileHandler struct {
	service *service.ProfileService
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(svc *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// Register registers the profile routes with the API.
func (h *ProfileHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listProfiles",
		Method:      "GET",
		Path:        "/api/v1/profiles",
		Summary:     "List encoding profiles",
		Tags:        []string{"Profiles"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getProfile",
		Method:      "GET",
		Path:        "/api/v1/profiles/{id}",
		Summary:     "Get encoding profile",
		Tags:        []string{"Profiles"},
	}, h.GetByID)
}

// ProfileResponse represents an encoding profile in API responses.
type ProfileResponse struct {
	ID          string `json:"id" doc:"Profile ID (ULID)"`
	Name        string `json:"name" doc:"Profile name"`
	Resolution  string `json:"resolution" doc:"Output label, e.g. 720p"`
	Width       int    `json:"width" doc:"Output width in pixels"`
	Height      int    `json:"height" doc:"Output height in pixels"`
	BitrateKbps int    `json:"bitrate_kbps" doc:"Target video bitrate"`
	IsActive    bool   `json:"is_active" doc:"Whether the profile is used for new encodes"`
}

// ProfileFromModel converts a models.EncodingProfile to ProfileResponse.
func ProfileFromModel(p *models.EncodingProfile) ProfileResponse {
	return ProfileResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Resolution:  p.Resolution,
		Width:       p.Width,
		Height:      p.Height,
		BitrateKbps: p.Bitrate,
		IsActive:    p.IsActive,
	}
}

// ListProfilesInput is the input for listing profiles.
type ListProfilesInput struct {
	Active string `query:"active" doc:"Filter by active status (true or false)" required:"false" enum:"true,false,"`
}

// ListProfilesOutput is the output for listing profiles.
type ListProfilesOutput struct {
	Body struct {
		Profiles []ProfileResponse `json:"profiles"`
	}
}

// List returns encoding profiles.
func (h *ProfileHandler) List(ctx context.Context, input *ListProfilesInput) (*ListProfilesOutput, error) {
	var profiles []*models.EncodingProfile
	var err error

	if input.Active == "true" {
		profiles, err = h.service.Active(ctx)
	} else {
		profiles, err = h.service.All(ctx)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list profiles", err)
	}

	resp := &ListProfilesOutput{}
	resp.Body.Profiles = make([]ProfileResponse, len(profiles))
	for i, p := range profiles {
		resp.Body.Profiles[i] = ProfileFromModel(p)
	}
	return resp, nil
}

// GetProfileInput is the input for fetching one profile.
type GetProfileInput struct {
	ID string `path:"id" doc:"Profile ID (ULID)"`
}

// GetProfileOutput is the output for fetching one profile.
type GetProfileOutput struct {
	Body struct {
		Profile ProfileResponse `json:"profile"`
	}
}

// GetByID returns one profile.
func (h *ProfileHandler) GetByID(ctx context.Context, input *GetProfileInput) (*GetProfileOutput, error) {
	id, err := parseULID(input.ID)
	if err != nil {
		return nil, err
	}

	profile, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load profile", err)
	}
	if profile == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("profile %s not found", input.ID))
	}

	resp := &GetProfileOutput{}
	resp.Body.Profile = ProfileFromModel(profile)
	return resp, nil
}
