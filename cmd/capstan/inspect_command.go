package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"capstan/internal/config"
	"capstan/internal/smc"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "inspect <archive.smc>",
		Short:       "Summarize a local archive's metadata and contents",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			archive, err := smc.Open(path)
			if err != nil {
				return err
			}
			defer archive.Close()
			return printArchiveSummary(cmd, archive)
		},
	}
}

func printArchiveSummary(cmd *cobra.Command, archive *smc.Archive) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	info := archive.Info()
	actor := archive.ActorInfo()
	camera := archive.CameraInfo()

	for _, line := range renderSectionHeader("Archive", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Subject", statusInfo, info.SubjectID, colorize))
	fmt.Fprintln(out, renderStatusLine("Performance", statusInfo, info.PerformancePart, colorize))
	fmt.Fprintln(out, renderStatusLine("Captured", statusInfo, info.CaptureDate, colorize))
	fmt.Fprintln(out, renderStatusLine("Actor", statusInfo,
		fmt.Sprintf("%s, age %d, %.0f cm / %.1f kg", actor.Gender, actor.Age, actor.Height, actor.Weight), colorize))
	fmt.Fprintln(out, renderStatusLine("Rig", statusInfo,
		fmt.Sprintf("%d cameras, %d frames, %dx%d", camera.NumDevice, camera.NumFrame, camera.Resolution[1], camera.Resolution[0]), colorize))
	fmt.Fprintln(out, renderStatusLine("Expression data", statusInfo, yesNo(archive.HasExpressionData()), colorize))
	fmt.Fprintln(out, renderStatusLine("Audio", statusInfo, yesNo(archive.HasAudio()), colorize))
	fmt.Fprintln(out)

	cameras, err := archive.CameraIDs()
	if err != nil {
		return err
	}
	for _, line := range renderSectionHeader("Contents", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Cameras present", statusInfo,
		fmt.Sprintf("%d (%s)", len(cameras), strings.Join(cameras, " ")), colorize))

	rows, err := modalityRows(archive, cameras)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderTable([]string{"Modality", "Present", "Extent"}, rows))
	return nil
}

func modalityRows(archive *smc.Archive, cameras []string) ([][]string, error) {
	var rows [][]string

	calibrations, err := archive.Calibrations()
	if err != nil {
		return nil, err
	}
	rows = append(rows, []string{"calibration", yesNo(len(calibrations) > 0),
		fmt.Sprintf("%d cameras", len(calibrations))})

	colorFrames, maskFrames := 0, 0
	for _, camID := range cameras {
		frames, err := archive.FrameIDs(camID, smc.KindColor)
		if err != nil {
			return nil, err
		}
		colorFrames += len(frames)
		frames, err = archive.FrameIDs(camID, smc.KindMask)
		if err != nil {
			return nil, err
		}
		maskFrames += len(frames)
	}
	rows = append(rows,
		[]string{"images", yesNo(colorFrames > 0), fmt.Sprintf("%d frames", colorFrames)},
		[]string{"masks", yesNo(maskFrames > 0), fmt.Sprintf("%d frames", maskFrames)},
	)

	kp2dFrames := 0
	for _, camID := range cameras {
		frames, err := archive.Keypoints2dFrames(camID)
		if err != nil {
			continue
		}
		kp2dFrames += len(frames)
	}
	rows = append(rows, []string{"keypoints2d", yesNo(kp2dFrames > 0), fmt.Sprintf("%d frames", kp2dFrames)})

	kp3d, err := archive.Keypoints3dFrames()
	if err != nil {
		return nil, err
	}
	rows = append(rows, []string{"keypoints3d", yesNo(len(kp3d) > 0), fmt.Sprintf("%d frames", len(kp3d))})

	flame, err := archive.FLAMEFrames()
	if err != nil {
		return nil, err
	}
	rows = append(rows, []string{"flame", yesNo(len(flame) > 0), fmt.Sprintf("%d frames", len(flame))})

	uv, err := archive.UVTextureFrames()
	if err != nil {
		return nil, err
	}
	rows = append(rows, []string{"uv_textures", yesNo(len(uv) > 0), fmt.Sprintf("%d frames", len(uv))})

	_, hasScan, err := archive.Scan()
	if err != nil {
		return nil, err
	}
	scanMaskCams, err := archive.ScanMaskCameras()
	if err != nil {
		return nil, err
	}
	rows = append(rows,
		[]string{"scan", yesNo(hasScan), ""},
		[]string{"scan_masks", yesNo(len(scanMaskCams) > 0), fmt.Sprintf("%d cameras", len(scanMaskCams))},
	)

	clip, hasAudio, err := archive.Audio()
	if err != nil {
		return nil, err
	}
	extent := ""
	if hasAudio {
		extent = fmt.Sprintf("%d samples @ %d Hz", len(clip.Samples), clip.SampleRate)
	}
	rows = append(rows, []string{"audio", yesNo(hasAudio), extent})

	return rows, nil
}
