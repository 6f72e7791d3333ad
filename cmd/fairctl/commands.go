package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

// ErrVerificationFailed is returned by verify after it has printed a report
// that does not hold. main exits with status 2 on it.
var ErrVerificationFailed = errors.New("round failed verification")

// HashCmd prints the commitment of a server seed.
func HashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <server-seed>",
		Short: "Print the published commitment of a server seed",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), services.HashSeed(args[0]))
		},
	}
}

func DeriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the outcome of a seed triple",
		RunE:  deriveCmd,
	}
	addSeedFlags(cmd)
	return cmd
}

func addSeedFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("server-seed", "s", "", "revealed server seed")
	cmd.MarkFlagRequired("server-seed")
	cmd.Flags().StringP("client-seed", "c", "", "client seed")
	cmd.MarkFlagRequired("client-seed")
	cmd.Flags().Int64P("nonce", "n", 0, "round nonce")
	cmd.MarkFlagRequired("nonce")
	cmd.Flags().StringP("game", "g", "", "game type; sets count, min and max")
	cmd.Flags().Int("count", 1, "numbers to draw")
	cmd.Flags().Int("min", 0, "smallest value")
	cmd.Flags().Int("max", 100, "largest value")
	cmd.Flags().String("algorithm", services.AlgorithmARC4V1, "outcome algorithm")
}

func drawFromFlags(cmd *cobra.Command) (models.DrawSpec, error) {
	if game, _ := cmd.Flags().GetString("game"); game != "" {
		g, err := services.LookupGame(models.GameType(game))
		if err != nil {
			return models.DrawSpec{}, err
		}
		return g.Draw(), nil
	}

	count, _ := cmd.Flags().GetInt("count")
	lo, _ := cmd.Flags().GetInt("min")
	hi, _ := cmd.Flags().GetInt("max")
	return models.DrawSpec{Count: count, Min: lo, Max: hi}, nil
}

func deriveFromFlags(cmd *cobra.Command) ([]int, error) {
	serverSeed, _ := cmd.Flags().GetString("server-seed")
	clientSeed, _ := cmd.Flags().GetString("client-seed")
	nonce, _ := cmd.Flags().GetInt64("nonce")
	algorithm, _ := cmd.Flags().GetString("algorithm")

	draw, err := drawFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	return services.DeriveNumbersVersion(algorithm, serverSeed, clientSeed, nonce, draw.Count, draw.Min, draw.Max)
}

func deriveCmd(cmd *cobra.Command, args []string) error {
	outcome, err := deriveFromFlags(cmd)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]interface{}{"outcome": outcome})
}

// VerifyCmd checks a revealed round offline against its published commitment.
func VerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a revealed round against its commitment and outcome",
		RunE:  verifyCmd,
	}
	addSeedFlags(cmd)
	cmd.Flags().String("commitment", "", "server seed hash published at commit time")
	cmd.MarkFlagRequired("commitment")
	cmd.Flags().String("outcome", "", "comma separated outcome the server reported")
	return cmd
}

func verifyCmd(cmd *cobra.Command, args []string) error {
	serverSeed, _ := cmd.Flags().GetString("server-seed")
	clientSeed, _ := cmd.Flags().GetString("client-seed")
	nonce, _ := cmd.Flags().GetInt64("nonce")
	algorithm, _ := cmd.Flags().GetString("algorithm")
	commitment, _ := cmd.Flags().GetString("commitment")
	reported, _ := cmd.Flags().GetString("outcome")

	outcome, err := deriveFromFlags(cmd)
	if err != nil {
		return err
	}

	report := models.VerificationReport{
		ServerSeed:       serverSeed,
		ServerSeedHash:   commitment,
		ClientSeed:       clientSeed,
		Nonce:            nonce,
		Outcome:          outcome,
		VerificationHash: services.HashSeed(services.SeedString(serverSeed, clientSeed, nonce)),
		Algorithm:        algorithm,
		Status:           models.RoundStatusRevealed,
		IsValid:          true,
	}

	if services.HashSeed(serverSeed) != commitment {
		report.IsValid = false
		report.Reason = "server seed does not match commitment"
	} else if reported != "" {
		want, err := parseOutcome(reported)
		if err != nil {
			return err
		}
		if !equalInts(want, outcome) {
			report.IsValid = false
			report.Reason = "reported outcome does not match derived outcome"
		}
	}

	if err := printJSON(cmd, report); err != nil {
		return err
	}
	if !report.IsValid {
		return errors.Wrap(ErrVerificationFailed, report.Reason)
	}
	return nil
}

func parseOutcome(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid outcome value %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TokenCmd mints a token for local testing or for a game server.
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a signed API token",
		Args:  cobra.ExactArgs(1),
		RunE:  tokenCmd,
	}
	cmd.Flags().String("secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to $JWT_SECRET)")
	cmd.Flags().String("role", services.RolePlayer, "token role: player or service")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func tokenCmd(cmd *cobra.Command, args []string) error {
	secret, _ := cmd.Flags().GetString("secret")
	role, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	if secret == "" {
		return fmt.Errorf("a signing secret is required")
	}
	if role != services.RolePlayer && role != services.RoleService {
		return fmt.Errorf("unknown role %q", role)
	}

	token, err := services.NewJWTService(secret, ttl).GenerateToken(args[0], role)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
