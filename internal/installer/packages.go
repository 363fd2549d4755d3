package installer

import (
	"context"
	"os/exec"

	"github.com/ironsheep/occlusion-mcp/internal/pyenv"
)

// PackageSpec pairs the name a dependency is imported by with the name it is
// installed by.
type PackageSpec struct {
	ImportName  string `json:"import_name"`
	InstallName string `json:"install_name"`
}

// DefaultPackages are the text-recognition runtime dependencies, in install order.
var DefaultPackages = []PackageSpec{
	{ImportName: "easyocr", InstallName: "easyocr"},
	{ImportName: "cv2", InstallName: "opencv-python-headless"},
}

// CommandFunc builds the installer process for one package.
type CommandFunc func(ctx context.Context, runtime string, spec PackageSpec, targetDir string) *exec.Cmd

// PipCommand installs spec into targetDir with "python -m pip".
func PipCommand(ctx context.Context, runtime string, spec PackageSpec, targetDir string) *exec.Cmd {
	//nolint:gosec // the runtime comes from pyenv.Locator and the package name from fixed configuration.
	cmd := exec.CommandContext(ctx, runtime,
		"-m", "pip", "install", "--upgrade",
		"--upgrade-strategy", "only-if-needed",
		spec.InstallName,
		"--target="+targetDir,
		"--disable-pip-version-check",
		"--no-warn-script-location",
		"--no-user",
	)
	cmd.Env = pyenv.Env(targetDir)
	return cmd
}

// announcement is the message shown when a package's install begins.
func announcement(spec PackageSpec) string {
	if spec.InstallName == "easyocr" {
		return "Installing 'easyocr' and its dependencies...\n" +
			"This can take several minutes. Progress will be shown below."
	}
	return "Preparing to install '" + spec.InstallName + "'..."
}
