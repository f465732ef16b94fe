package main

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/mayberry/pkg/medapi"
)

func init() {
	rootCmd.AddCommand(symptomsCmd, labCmd, opinionCmd)

	f := symptomsCmd.Flags()
	f.String("duration", "", "how long the symptoms have lasted")
	f.Int("severity", 0, "severity from 1 to 10")
	f.Int("age", 0, "patient age")
	f.String("gender", "", "patient gender")
	f.String("notes", "", "additional information")

	f = labCmd.Flags()
	f.String("type", "blood", "test type")
	f.String("data", "", "raw result text")
	f.String("file", "", "read raw result text from a file")

	f = opinionCmd.Flags()
	f.String("symptoms", "", "symptoms the diagnosis was based on")
	f.String("treatment", "", "current treatment")
	f.String("history", "", "relevant medical history")
	f.String("notes", "", "additional notes")
}

var symptomsCmd = &cobra.Command{
	Use:   "symptoms <symptom>...",
	Short: "Run the symptom checker",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.authenticated(cmd.Context()); err != nil {
			return err
		}

		f := cmd.Flags()
		req := medapi.SymptomInput{Symptoms: args}
		req.Duration, _ = f.GetString("duration")
		req.Severity, _ = f.GetInt("severity")
		req.Age, _ = f.GetInt("age")
		req.Gender, _ = f.GetString("gender")
		req.AdditionalInfo, _ = f.GetString("notes")
		if req.Severity < 0 || req.Severity > 10 {
			return errors.New("severity must be between 1 and 10")
		}

		res, err := a.client.SymptomCheck(cmd.Context(), req)
		if err != nil {
			return err
		}
		warnIfUrgent(res)
		return printJSON(os.Stdout, res)
	},
}

var labCmd = &cobra.Command{
	Use:   "lab <test name>",
	Short: "Analyze a lab result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.authenticated(cmd.Context()); err != nil {
			return err
		}

		f := cmd.Flags()
		req := medapi.LabResultUpload{TestName: strings.Join(args, " ")}
		req.TestType, _ = f.GetString("type")
		req.RawData, _ = f.GetString("data")
		if path, _ := f.GetString("file"); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			req.RawData = string(b)
		}

		res, err := a.client.LabAnalysis(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, res)
	},
}

var opinionCmd = &cobra.Command{
	Use:   "second-opinion <diagnosis>",
	Short: "Ask for a second opinion on a diagnosis",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.authenticated(cmd.Context()); err != nil {
			return err
		}

		f := cmd.Flags()
		req := medapi.SecondOpinionRequest{OriginalDiagnosis: strings.Join(args, " ")}
		req.Symptoms, _ = f.GetString("symptoms")
		req.CurrentTreatment, _ = f.GetString("treatment")
		req.MedicalHistory, _ = f.GetString("history")
		req.AdditionalNotes, _ = f.GetString("notes")

		res, err := a.client.SecondOpinion(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, res)
	},
}

// warnIfUrgent highlights symptom results that call for immediate care.
func warnIfUrgent(res json.RawMessage) {
	var r struct {
		Urgent bool             `json:"should_seek_immediate_care"`
		Risk   medapi.RiskLevel `json:"risk_level"`
	}
	if json.Unmarshal(res, &r) != nil || !r.Urgent {
		return
	}
	riskColor(r.Risk).Fprintln(os.Stderr, "Seek immediate medical care.")
}
