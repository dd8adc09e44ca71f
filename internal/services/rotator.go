package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// Secrets Manager rotation steps
const (
	RotationStepCreate = "createSecret"
	RotationStepSet    = "setSecret"
	RotationStepTest   = "testSecret"
	RotationStepFinish = "finishSecret"
)

const (
	stageCurrent = "AWSCURRENT"
	stagePending = "AWSPENDING"

	// MaxSessionKeyVersions is how many keys survive a rotation. Cookies
	// sealed with an older key stop decoding once it drops off the list.
	MaxSessionKeyVersions = 3
)

// RotationEvent is the payload Secrets Manager sends a rotation function.
type RotationEvent struct {
	Step               string `json:"Step"`
	SecretId           string `json:"SecretId"`
	ClientRequestToken string `json:"ClientRequestToken"`
}

// SecretsRotationAPI is the subset of the Secrets Manager client used by SessionKeyRotator
type SecretsRotationAPI interface {
	SecretsManagerAPI
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	UpdateSecretVersionStage(ctx context.Context, params *secretsmanager.UpdateSecretVersionStageInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error)
}

// SessionKeyRotator rotates the session key secret read by SessionKeyService.
// A new key is prepended and the oldest dropped, so existing sessions keep
// decoding until their key ages out.
type SessionKeyRotator struct {
	client SecretsRotationAPI
	now    func() time.Time
}

func NewSessionKeyRotator(client SecretsRotationAPI) *SessionKeyRotator {
	return &SessionKeyRotator{
		client: client,
		now:    time.Now,
	}
}

// HandleRotation runs a single rotation step.
func (r *SessionKeyRotator) HandleRotation(ctx context.Context, event RotationEvent) error {
	logger := zerolog.Ctx(ctx).With().
		Str("step", event.Step).
		Str("secret_id", event.SecretId).
		Logger()
	ctx = logger.WithContext(ctx)

	logger.Info().Msg("Rotation step started")

	switch event.Step {
	case RotationStepCreate:
		return r.createSecret(ctx, event)
	case RotationStepSet:
		// the keys live only in the secret; nothing downstream to update
		return nil
	case RotationStepTest:
		return r.testSecret(ctx, event)
	case RotationStepFinish:
		return r.finishSecret(ctx, event)
	default:
		return fmt.Errorf("unknown rotation step: %s", event.Step)
	}
}

// Rotate runs all four steps back to back under the given token.
func (r *SessionKeyRotator) Rotate(ctx context.Context, secretID, token string) error {
	steps := []string{RotationStepCreate, RotationStepSet, RotationStepTest, RotationStepFinish}
	for _, step := range steps {
		event := RotationEvent{
			Step:               step,
			SecretId:           secretID,
			ClientRequestToken: token,
		}
		if err := r.HandleRotation(ctx, event); err != nil {
			return fmt.Errorf("%s step failed: %w", step, err)
		}
	}
	return nil
}

// CancelPending removes the AWSPENDING stage left behind by a failed rotation.
func (r *SessionKeyRotator) CancelPending(ctx context.Context, secretID, versionID string) error {
	_, err := r.client.UpdateSecretVersionStage(ctx, &secretsmanager.UpdateSecretVersionStageInput{
		SecretId:            aws.String(secretID),
		VersionStage:        aws.String(stagePending),
		RemoveFromVersionId: aws.String(versionID),
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s stage: %w", stagePending, err)
	}
	return nil
}

func (r *SessionKeyRotator) createSecret(ctx context.Context, event RotationEvent) error {
	logger := zerolog.Ctx(ctx)

	// Secrets Manager retries steps; a pending version for this token is already done
	_, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(event.SecretId),
		VersionId:    aws.String(event.ClientRequestToken),
		VersionStage: aws.String(stagePending),
	})
	if err == nil {
		logger.Info().Msg("Pending version already exists")
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to check pending secret: %w", err)
	}

	versions, err := r.currentVersions(ctx, event.SecretId)
	if err != nil {
		return err
	}

	newVersion, err := GenerateSessionKey(r.now())
	if err != nil {
		return err
	}

	versions = append([]SecretVersion{newVersion}, versions...)
	if len(versions) > MaxSessionKeyVersions {
		versions = versions[:MaxSessionKeyVersions]
	}

	secretJSON, err := json.Marshal(versions)
	if err != nil {
		return fmt.Errorf("failed to marshal secret: %w", err)
	}

	logger.Info().Int("version_count", len(versions)).Msg("Creating pending session keys")

	_, err = r.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:           aws.String(event.SecretId),
		SecretString:       aws.String(string(secretJSON)),
		ClientRequestToken: aws.String(event.ClientRequestToken),
		VersionStages:      []string{stagePending},
	})
	if err != nil {
		return fmt.Errorf("failed to put secret value: %w", err)
	}

	return nil
}

// currentVersions returns the valid keys of the current secret. A missing,
// empty or corrupt secret starts over with no keys. Any other read failure is
// returned so existing sessions are not dropped by a transient error.
func (r *SessionKeyRotator) currentVersions(ctx context.Context, secretID string) ([]SecretVersion, error) {
	logger := zerolog.Ctx(ctx)

	output, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		if isNotFound(err) {
			logger.Warn().Err(err).Msg("No current secret - starting fresh")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get current secret: %w", err)
	}
	if aws.ToString(output.SecretString) == "" {
		logger.Warn().Msg("Secret is empty - starting fresh")
		return nil, nil
	}

	var versions []SecretVersion
	if err := json.Unmarshal([]byte(*output.SecretString), &versions); err != nil {
		logger.Warn().Err(err).Msg("Current secret is corrupt (invalid JSON) - overwriting with fresh secret")
		return nil, nil
	}

	valid := make([]SecretVersion, 0, len(versions))
	for i, v := range versions {
		if _, err := decodeKey(v); err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("Discarding invalid secret version")
			continue
		}
		valid = append(valid, v)
	}
	return valid, nil
}

func (r *SessionKeyRotator) testSecret(ctx context.Context, event RotationEvent) error {
	output, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(event.SecretId),
		VersionId:    aws.String(event.ClientRequestToken),
		VersionStage: aws.String(stagePending),
	})
	if err != nil {
		return fmt.Errorf("failed to get pending secret: %w", err)
	}

	var versions []SecretVersion
	if err := json.Unmarshal([]byte(aws.ToString(output.SecretString)), &versions); err != nil {
		return fmt.Errorf("pending secret is not valid JSON: %w", err)
	}
	if len(versions) == 0 {
		return errors.New("pending secret has no versions")
	}
	if _, err := decodeKey(versions[0]); err != nil {
		return fmt.Errorf("pending secret: %w", err)
	}

	return nil
}

func (r *SessionKeyRotator) finishSecret(ctx context.Context, event RotationEvent) error {
	current, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(event.SecretId),
		VersionStage: aws.String(stageCurrent),
	})

	input := &secretsmanager.UpdateSecretVersionStageInput{
		SecretId:        aws.String(event.SecretId),
		VersionStage:    aws.String(stageCurrent),
		MoveToVersionId: aws.String(event.ClientRequestToken),
	}
	switch {
	case err == nil:
		if aws.ToString(current.VersionId) == event.ClientRequestToken {
			zerolog.Ctx(ctx).Info().Msg("Version already current")
			return nil
		}
		input.RemoveFromVersionId = current.VersionId
	case !isNotFound(err):
		return fmt.Errorf("failed to get current secret: %w", err)
	}

	if _, err := r.client.UpdateSecretVersionStage(ctx, input); err != nil {
		return fmt.Errorf("failed to update version stage: %w", err)
	}
	return nil
}

// GenerateSessionKey returns a fresh 256-bit key stamped with now.
func GenerateSessionKey(now time.Time) (SecretVersion, error) {
	key := make([]byte, sessionKeyLength)
	if _, err := rand.Read(key); err != nil {
		return SecretVersion{}, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return SecretVersion{
		Secret:    base64.StdEncoding.EncodeToString(key),
		Timestamp: now.UTC().Format(time.RFC3339),
	}, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException"
}
