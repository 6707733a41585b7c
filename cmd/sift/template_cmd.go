package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sift/cmd/sift/ui"
	"sift/internal/template"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage the template library",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates in the library",
	RunE:  runTemplateList,
}

var templateShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a template's phases and extraction fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateShow,
}

var templateSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search templates by name or description",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateSearch,
}

var templateValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a template file without importing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateValidate,
}

var templateImportForce bool

var templateImportCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Validate and copy a template file into the library",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateImport,
}

func init() {
	templateImportCmd.Flags().BoolVar(&templateImportForce, "force", false, "Overwrite an existing template with the same name")

	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateShowCmd)
	templateCmd.AddCommand(templateSearchCmd)
	templateCmd.AddCommand(templateValidateCmd)
	templateCmd.AddCommand(templateImportCmd)
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	infos, err := openLibrary().List()
	if err != nil {
		return err
	}
	printTemplateInfos(infos)
	return nil
}

func runTemplateSearch(cmd *cobra.Command, args []string) error {
	infos, err := openLibrary().Search(args[0])
	if err != nil {
		return err
	}
	printTemplateInfos(infos)
	return nil
}

func printTemplateInfos(infos []template.Info) {
	if len(infos) == 0 {
		fmt.Println(ui.Muted("No templates found. Import one with: sift template import <file>"))
		return
	}
	fmt.Println(ui.HeaderStyle.Render("Templates"))
	for _, info := range infos {
		fmt.Printf("  %s %s\n", ui.TitleStyle.Render(info.Name), ui.Muted("(%d phases)", info.PhaseCount))
		if info.Description != "" {
			fmt.Printf("    %s\n", ui.Muted("%s", info.Description))
		}
	}
}

func runTemplateShow(cmd *cobra.Command, args []string) error {
	t, err := openLibrary().Resolve(args[0])
	if err != nil {
		return err
	}

	fmt.Println(ui.TitleStyle.Render(t.Name))
	if t.Description != "" {
		fmt.Println(ui.Muted("%s", t.Description))
	}
	fmt.Println()

	for i, p := range t.Phases {
		fmt.Printf("%d. %s %s\n", i+1, ui.HeaderStyle.Render(p.Name), ui.Muted("[%s]", p.ID))
		if p.Prompt != "" {
			fmt.Printf("   %s\n", p.Prompt)
		}
		if p.DependsOn != "" {
			fmt.Printf("   %s\n", ui.Muted("depends on: %s", p.DependsOn))
		}
		for _, f := range p.Extract {
			fmt.Printf("   - %s (%s): %s\n", f.ID, f.Type, f.Prompt)
		}
	}
	return nil
}

func runTemplateValidate(cmd *cobra.Command, args []string) error {
	t, err := template.Load(args[0])
	if err != nil {
		fmt.Println(ui.Fail("%v", err))
		return err
	}
	fmt.Println(ui.Success("template %q is valid (%d phases)", t.Name, len(t.Phases)))
	return nil
}

func runTemplateImport(cmd *cobra.Command, args []string) error {
	name, err := openLibrary().Import(args[0], templateImportForce)
	if err != nil {
		return err
	}
	fmt.Println(ui.Success("imported template %q", name))
	return nil
}
