package permissions

func init() {
	perms := []*Permission{
		{
			ID:          "user.view",
			Module:      "core",
			Description: "View users",
		},
		{
			ID:          "user.create",
			Module:      "core",
			DependsOn:   []string{"user.view"},
			Description: "Create new users",
		},
		{
			ID:          "user.edit",
			Module:      "core",
			DependsOn:   []string{"user.view"},
			Description: "Edit existing users",
		},
		{
			ID:          "user.delete",
			Module:      "core",
			DependsOn:   []string{"user.view", "user.edit"},
			Description: "Delete users and their dependent records",
		},
		{
			ID:          "role.view",
			Module:      "core",
			Description: "View roles and their permissions",
		},
		{
			ID:          "role.manage",
			Module:      "core",
			DependsOn:   []string{"role.view"},
			Description: "Create, edit and assign roles",
		},
		{
			ID:          "subscription.view",
			Module:      "billing",
			Description: "View subscriptions",
		},
		{
			ID:          "subscription.create",
			Module:      "billing",
			DependsOn:   []string{"subscription.view"},
			Description: "Create subscriptions",
		},
		{
			ID:          "subscription.edit",
			Module:      "billing",
			DependsOn:   []string{"subscription.view"},
			Description: "Edit and cancel subscriptions",
		},
		{
			ID:          "subscription.delete",
			Module:      "billing",
			DependsOn:   []string{"subscription.view", "subscription.edit"},
			Description: "Delete subscriptions",
		},
		{
			ID:          "payment.view",
			Module:      "billing",
			Description: "View payment transactions",
		},
		{
			ID:          "payment.create",
			Module:      "billing",
			DependsOn:   []string{"payment.view"},
			Description: "Initiate hosted payment pages",
		},
		{
			ID:          "payment.refund",
			Module:      "billing",
			DependsOn:   []string{"payment.view"},
			Description: "Refund captured transactions",
		},
		{
			ID:          "exam.view",
			Module:      "exams",
			Description: "View exams and questions",
		},
		{
			ID:          "exam.create",
			Module:      "exams",
			DependsOn:   []string{"exam.view"},
			Description: "Create exams",
		},
		{
			ID:          "exam.edit",
			Module:      "exams",
			DependsOn:   []string{"exam.view"},
			Description: "Edit exams and questions",
		},
		{
			ID:          "exam.delete",
			Module:      "exams",
			DependsOn:   []string{"exam.view", "exam.edit"},
			Description: "Delete exams",
		},
		{
			ID:          "exam.generate",
			Module:      "exams",
			DependsOn:   []string{"exam.view", "exam.create"},
			Description: "Generate exam questions with the AI assistant",
		},
		{
			ID:          "task.view",
			Module:      "maintenance",
			Description: "View background task status and history",
		},
		{
			ID:          "task.run",
			Module:      "maintenance",
			DependsOn:   []string{"task.view"},
			Description: "Trigger background tasks manually",
		},
	}

	for _, perm := range perms {
		MustRegister(perm)
	}
}
